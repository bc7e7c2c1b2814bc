package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopbilling/internal/billing"
	"github.com/vladislavdragonenkov/shopbilling/internal/domain"
	"github.com/vladislavdragonenkov/shopbilling/internal/metrics"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/bill"
	grpcsvc "github.com/vladislavdragonenkov/shopbilling/internal/service/grpc"
	"github.com/vladislavdragonenkov/shopbilling/internal/service/outbox"
)

// Dependencies содержит собранный граф сервисов приложения.
type Dependencies struct {
	Engine        *billing.Engine
	Prices        domain.PriceWriter
	Bills         *bill.Service
	BillServer    *grpcsvc.BillServer
	OutboxWorker  *outbox.Worker
	OutboxCleanup *outbox.CleanupWorker
	Metrics       *metrics.BillingMetrics
	Logger        *log.Entry
}

// NewDependencies связывает движок расчёта, сервис счетов, gRPC-слой и
// outbox worker поверх открытого хранилища.
func NewDependencies(rt *runtimeDependencies, cfg Config, publisher, dlq domain.OutboxPublisher, logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	billingMetrics := metrics.NewBillingMetrics()
	engine := billing.NewEngine(rt.catalog)
	bills := bill.NewService(engine, rt.store,
		bill.WithLogger(logger.WithField("layer", "bill-service")),
		bill.WithMetrics(billingMetrics),
	)

	workerOpts := []outbox.Option{
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if dlq != nil {
		workerOpts = append(workerOpts, outbox.WithDLQPublisher(dlq))
	}

	cleanup := outbox.NewCleanupWorker(rt.outboxPurger,
		outbox.WithCleanupLogger(logger.WithField("layer", "outbox-cleanup")),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithRetention(cfg.OutboxRetention),
	)

	return &Dependencies{
		Engine:        engine,
		Prices:        rt.prices,
		Bills:         bills,
		BillServer:    grpcsvc.NewBillServer(bills, logger.WithField("layer", "grpc")),
		OutboxWorker:  outbox.NewWorker(rt.outboxRepo, publisher, workerOpts...),
		OutboxCleanup: cleanup,
		Metrics:       billingMetrics,
		Logger:        logger,
	}
}

// demoReferenceData — справочники для локального запуска.
func demoReferenceData() domain.ReferenceData {
	return domain.ReferenceData{
		Products: []domain.Product{
			{ID: "P1", Name: "Ao thun co tron", CostMinor: 6000, PriceMinor: 12000, Type: "shirt", Quantity: 40, Size: "M"},
			{ID: "P2", Name: "Quan jean ong dung", CostMinor: 15000, PriceMinor: 29000, Type: "pants", Quantity: 25, Size: "L"},
			{ID: "P3", Name: "Non luoi trai", CostMinor: 3000, PriceMinor: 7500, Type: "accessory", Quantity: 60},
			{ID: "P4", Name: "Ao khoac gio", CostMinor: 22000, PriceMinor: 45000, Type: "jacket", Quantity: 10, Size: "XL"},
		},
		Customers: []domain.Customer{
			{ID: "C001", FullName: "Nguyen Van An", Email: "an.nguyen@example.com", Phone: "0901234567"},
			{ID: "C002", FullName: "Le Thi Binh", Email: "binh.le@example.com", Phone: "0912345678"},
		},
		Staff: []domain.Staff{
			{ID: "S001", FullName: "Tran Minh Chau", Role: "cashier"},
			{ID: "S002", FullName: "Pham Quoc Dung", Role: "manager"},
		},
	}
}
