/* Apache v2 license
*  Copyright (C) <2021> Oarsight
*
*  SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/globalsign/mgo"
	log "github.com/sirupsen/logrus"

	"github.com/oarsight/doorway-tracker/app/beaconprocessor"
	"github.com/oarsight/doorway-tracker/app/config"
	"github.com/oarsight/doorway-tracker/app/notification"
	"github.com/oarsight/doorway-tracker/app/routes"
	"github.com/oarsight/doorway-tracker/app/trip"
	"github.com/oarsight/doorway-tracker/pkg/healthcheck"
)

const dbConnectTimeout = 5 * time.Second

func main() {

	isHealthyPtr := flag.Bool("isHealthy", false, "a bool, runs a healthcheck")
	flag.Parse()

	// Ensure simple text format
	log.SetFormatter(&log.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})

	// Load config variables
	err := config.InitConfig()
	fatalErrorHandler("unable to load configuration variables", err)

	if *isHealthyPtr {
		os.Exit(healthcheck.Healthcheck(config.AppConfig.Port))
	}

	setLoggingLevel(config.AppConfig.LoggingLevel)

	log.WithFields(log.Fields{
		"Method": "main",
		"Action": "Start",
	}).Info("Starting doorway tracker service...")

	profile, err := beaconprocessor.LoadCalibration(config.AppConfig.CalibrationFile)
	fatalErrorHandler("unable to load the calibration profile", err)

	// Connect to mongodb
	log.WithFields(log.Fields{
		"Method": "main",
		"Action": "Start",
		"Host":   config.AppConfig.DbURL,
	}).Info("Registering a new master db...")

	masterSession, err := mgo.DialWithTimeout(config.AppConfig.DbURL, dbConnectTimeout)
	fatalErrorHandler("unable to register a new master db", err)
	defer masterSession.Close()

	tripStore := trip.NewStore(masterSession, config.AppConfig.DbName)
	errorHandler("error creating indexes", tripStore.EnsureIndexes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trip writes ride a bounded queue so slow storage never stalls the
	// signal path.
	sink := trip.NewSink(tripStore, config.AppConfig.SinkQueueSize)
	go sink.Run(ctx)

	var engineOptions []beaconprocessor.Option
	var mqttClient notification.Client
	if config.AppConfig.MqttBroker != "" {
		mqttClient, err = notification.Connect(config.AppConfig.MqttBroker, config.AppConfig.MqttClientID)
		fatalErrorHandler("unable to connect to the mqtt broker", err)
		defer mqttClient.Disconnect(250)

		publisher := notification.NewPublisher(mqttClient, config.AppConfig.StateTopicPrefix)
		engineOptions = append(engineOptions, beaconprocessor.WithNotifier(publisher))
	}

	engine, err := beaconprocessor.NewEngine(profile, sink, engineOptions...)
	fatalErrorHandler("unable to build the tracking engine", err)

	sweepInterval := time.Duration(config.AppConfig.SweepIntervalMillis) * time.Millisecond
	sweeper := beaconprocessor.NewSweeper(engine, sweepInterval)
	go sweeper.Run(ctx)

	if mqttClient != nil {
		ingest := notification.NewIngest(engine)
		err = ingest.Subscribe(mqttClient, config.AppConfig.DetectionTopic)
		fatalErrorHandler("unable to subscribe to the detection topic", err)
	}

	// Initiate webserver and routes
	startWebServer(engine, tripStore, config.AppConfig.Port, config.AppConfig.ServiceName)

	// Stop the sweeper and let the sink drain queued trip writes.
	cancel()
	select {
	case <-sink.Done():
	case <-time.After(dbConnectTimeout):
		log.WithField("Method", "main").Warn("Trip sink did not drain in time")
	}

	log.WithField("Method", "main").Info("Completed.")
}

func startWebServer(engine *beaconprocessor.Engine, tripStore *trip.Store, port string, serviceName string) {

	// Start Webserver and pass additional data
	router := routes.NewRouter(engine, tripStore, serviceName, config.AppConfig.MaxBodyBytes)

	// Create a new server and set timeout values.
	server := http.Server{
		Addr:           ":" + port,
		Handler:        router,
		ReadTimeout:    900 * time.Second,
		WriteTimeout:   900 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// We want to report the listener is closed.
	var wg sync.WaitGroup
	wg.Add(1)

	// Start the listener.
	go func() {
		log.Infof("%s running!", serviceName)
		log.Infof("Listener closed : %v", server.ListenAndServe())
		wg.Done()
	}()

	// Listen for an interrupt signal from the OS.
	osSignals := make(chan os.Signal, 1)
	signal.Notify(osSignals, os.Interrupt)

	// Wait for a signal to shutdown.
	<-osSignals

	// Create a context to attempt a graceful 5 second shutdown.
	const timeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Attempt the graceful shutdown by closing the listener and
	// completing all inflight requests.
	if err := server.Shutdown(ctx); err != nil {

		log.WithFields(log.Fields{
			"Method":  "main",
			"Action":  "shutdown",
			"Timeout": timeout,
			"Message": err.Error(),
		}).Error("Graceful shutdown did not complete")

		// Looks like we timedout on the graceful shutdown. Kill it hard.
		if err := server.Close(); err != nil {
			log.WithFields(log.Fields{
				"Method":  "main",
				"Action":  "shutdown",
				"Message": err.Error(),
			}).Error("Error killing server")
		}
	}

	// Wait for the listener to report it is closed.
	wg.Wait()
}

func errorHandler(message string, err error) {
	if err != nil {
		log.WithFields(log.Fields{
			"Method": "main",
			"Error":  fmt.Sprintf("%+v", err),
		}).Error(message)
	}
}

func fatalErrorHandler(message string, err error) {
	if err != nil {
		log.WithFields(log.Fields{
			"Method": "main",
			"Error":  fmt.Sprintf("%+v", err),
		}).Fatal(message)
	}
}

func setLoggingLevel(loggingLevel string) {
	switch strings.ToLower(loggingLevel) {
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "trace":
		log.SetLevel(log.TraceLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
