package factory

import (
	"fmt"

	"github.com/mikey/llm-daily-brief/internal/adapters/delivery"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// DeliveryFactory creates the brief delivery based on configuration
type DeliveryFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewDeliveryFactory creates a new delivery factory
func NewDeliveryFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *DeliveryFactory {
	return &DeliveryFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateDelivery creates the configured delivery; "none" yields a nil delivery
func (f *DeliveryFactory) CreateDelivery() (core.BriefDelivery, error) {
	deliveryCfg := f.cfg.GetDelivery()

	switch deliveryCfg.Method {
	case "none", "":
		return nil, nil
	case "smtp":
		return delivery.NewSMTPDelivery(f.cfg.GetSMTP(), f.logger, f.textProcessor)
	case "file":
		return delivery.NewFileDelivery(deliveryCfg.FileDir, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported delivery method: %s", deliveryCfg.Method)
	}
}
