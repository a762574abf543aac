package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"lexvoice-server/pkg/agent"
	"lexvoice-server/pkg/config"
	"lexvoice-server/pkg/dial"
	http_server "lexvoice-server/pkg/http"
	"lexvoice-server/pkg/messaging"
	"lexvoice-server/pkg/metrics"
	"lexvoice-server/pkg/notify"
	"lexvoice-server/pkg/payment"
	"lexvoice-server/pkg/session"
	"lexvoice-server/pkg/tools"
	"lexvoice-server/pkg/version"
)

var (
	logger = logrus.New()

	appConfig  *config.Config
	amqpClient *messaging.AMQPClient
	httpServer *http_server.Server
)

func main() {
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	var err error
	appConfig, err = config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogging(appConfig)

	if err := appConfig.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithField("version", version.Version).Info("Starting lexvoice server")

	metrics.Init(logger)

	// Process-wide service handles, constructed once and shared by all
	// call sessions.
	mailer := notify.NewResendMailer(logger, appConfig.Mail.APIKey, appConfig.Mail.From)

	linker := payment.NewStripeLinker(logger, appConfig.Stripe.APIKey, appConfig.Stripe.PriceID)
	if linker == nil {
		logger.Info("Payment-link service not configured, paid bookings proceed without links")
	}

	dialer := dial.NewTwilioDialer(
		logger,
		appConfig.Twilio.AccountSID,
		appConfig.Twilio.AuthToken,
		appConfig.Twilio.PhoneNumber,
		appConfig.Twilio.EscalationNumber,
		appConfig.Twilio.EscalationTwiMLURL,
	)
	if !dialer.Configured() {
		logger.Info("Escalation dial-out not configured, escalations are email-only")
	}

	registry := tools.NewRegistry(logger)
	registry.Register(tools.NewScheduleAppointment(logger, mailer, appConfig.Mail.FirmEmail))
	registry.Register(tools.NewBookConsultation(logger, mailer, linkerOrNil(linker), tools.SchedulingLinks{
		FreePhone:    appConfig.Scheduling.FreePhoneURL,
		FreeZoom:     appConfig.Scheduling.FreeZoomURL,
		PaidZoom:     appConfig.Scheduling.PaidZoomURL,
		PaidInPerson: appConfig.Scheduling.PaidInPersonURL,
	}, appConfig.Mail.FirmEmail))
	registry.Register(tools.NewProcessPayment(logger, mailer, appConfig.Mail.FirmEmail))
	registry.Register(tools.NewEscalateToHuman(logger, mailer, dialer, appConfig.EscalationRecipient()))

	sessionConfig := agent.SessionConfig{
		APIKey:       appConfig.Engine.APIKey,
		Model:        appConfig.Engine.Model,
		Voice:        appConfig.Engine.Voice,
		Instructions: appConfig.Engine.Instructions,
		Tools:        registry.Definitions(),
	}
	factory := func(callSID string) agent.Session {
		return agent.NewRealtimeSession(logger, sessionConfig, callSID)
	}

	manager := session.NewManager(logger)
	orchestrator := session.NewOrchestrator(logger, mailer, registry, factory, appConfig.Mail.FirmEmail, manager)

	if appConfig.AMQP.URL != "" {
		amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:       appConfig.AMQP.URL,
			QueueName: appConfig.AMQP.QueueName,
		})
		if err := amqpClient.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP unavailable, live transcript publishing disabled")
		} else {
			orchestrator.SetTranscriptListener(messaging.NewAMQPTranscriptListener(logger, amqpClient))
		}
	}

	httpServer = http_server.NewServer(logger, &http_server.Config{
		Port:          appConfig.HTTP.Port,
		ReadTimeout:   appConfig.HTTP.ReadTimeout,
		WriteTimeout:  appConfig.HTTP.WriteTimeout,
		EnableMetrics: appConfig.HTTP.EnableMetrics,
	}, manager)
	if amqpClient != nil {
		httpServer.SetAMQPReporter(amqpClient)
	}

	intake := http_server.NewIntakeHandler(logger, appConfig.HTTP.Greeting)
	media := http_server.NewMediaStreamHandler(logger, orchestrator)
	httpServer.RegisterHandler("/voice", intake.ServeHTTP)
	httpServer.RegisterHandler(http_server.MediaStreamPath, media.ServeHTTP)

	httpServer.Start()
	logger.WithField("port", appConfig.HTTP.Port).Info("lexvoice server ready")

	waitForShutdown()
}

// linkerOrNil keeps a typed-nil *StripeLinker from masquerading as a
// non-nil payment.Linker inside the tool.
func linkerOrNil(l *payment.StripeLinker) payment.Linker {
	if l == nil {
		return nil
	}
	return l
}

func configureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	if amqpClient != nil {
		amqpClient.Disconnect()
	}

	logger.Info("Shutdown complete")
}
