package marketmaker

import (
	"context"
	"fmt"
	"time"
)

// QuoteJob runs the bot's quoting cycle on a fixed interval
type QuoteJob struct {
	bot      *Bot
	interval time.Duration
}

func NewQuoteJob(bot *Bot, interval time.Duration) *QuoteJob {
	return &QuoteJob{bot: bot, interval: interval}
}

func (j *QuoteJob) Name() string { return "marketmaker-quote" }

func (j *QuoteJob) Schedule() string {
	return fmt.Sprintf("@every %s", j.interval)
}

func (j *QuoteJob) Run(ctx context.Context) error {
	j.bot.Tick(ctx)
	return nil
}
