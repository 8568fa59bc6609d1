package factory

import (
	"context"
	"fmt"

	"github.com/mikey/llm-daily-brief/internal/adapters/mail"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// MailFactory creates the mailbox connector based on configuration
type MailFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *MailFactory {
	return &MailFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateConnector creates the configured connector; "none" yields a nil connector
func (f *MailFactory) CreateConnector() (core.MailConnector, error) {
	mailCfg := f.cfg.GetMail()

	switch mailCfg.Connector {
	case "none", "":
		return nil, nil
	case "gmail":
		return mail.NewGmailConnector(context.Background(), f.cfg.GetGmail(), mailCfg.MaxResults, f.logger, f.textProcessor)
	case "imap":
		return mail.NewIMAPConnector(f.cfg.GetIMAP(), mailCfg.MaxResults, f.logger, f.textProcessor)
	case "file":
		return mail.NewFileConnector(f.cfg.GetString("file.dir"), mailCfg.MaxResults, f.logger, f.textProcessor), nil
	default:
		return nil, fmt.Errorf("unsupported mail connector: %s", mailCfg.Connector)
	}
}
