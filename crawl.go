package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"naver-estate/config"
	"naver-estate/models"
	"naver-estate/scraper/naver"
	"naver-estate/services"
	"naver-estate/storage"
	"naver-estate/utils"
)

const previewRows = 5

var previewColumns = []string{"atclNm", services.RegionColumn, "rletTpNm", "tradTpNm"}

// collector is the part of naver.Scraper the pipeline needs.
type collector interface {
	Collect(ctx context.Context) (naver.Result, error)
}

// crawlPipeline is one crawl run: collect, post-process, write the CSV, then
// hand cleaned listings to the optional sinks and print the insight report.
type crawlPipeline struct {
	profile     *config.Profile
	collector   collector
	writer      storage.TableWriter
	sinks       []storage.ListingSink
	printReport bool
	logger      *utils.Logger
}

type crawlSummary struct {
	RunID    string
	Pages    int
	Records  int
	Written  bool
	Listings []*models.Listing
}

func (p *crawlPipeline) run(ctx context.Context) (*crawlSummary, error) {
	sum := &crawlSummary{RunID: uuid.NewString()}
	p.logger.Info("[crawl] Run %s starting", sum.RunID)

	res, err := p.collector.Collect(ctx)
	sum.Pages = res.Pages
	if err != nil {
		p.logger.Error("[crawl] Data collection failed after %d pages (%d records discarded)",
			res.Pages, len(res.Articles))
		return sum, fmt.Errorf("collect: %w", err)
	}
	sum.Records = len(res.Articles)
	p.logger.Info("[crawl] Collected %d records from %d pages", sum.Records, sum.Pages)

	table := services.NewProcessor(p.profile, p.logger).Process(res.Articles)
	if table.Len() == 0 {
		p.logger.Warn("[crawl] No records collected; nothing written")
		return sum, nil
	}

	if err := p.writer.Write(table); err != nil {
		return sum, fmt.Errorf("write csv: %w", err)
	}
	sum.Written = true
	p.logger.Info("[crawl] Saved %d rows", table.Len())
	p.preview(table)

	sum.Listings = services.NewCleaner(p.logger).Clean(table)
	for _, sink := range p.sinks {
		if err := sink.Write(ctx, sum.RunID, sum.Listings); err != nil {
			// The CSV is the primary output; sink failures are reported only.
			p.logger.Error("[crawl] Sink %T failed: %v", sink, err)
			continue
		}
		p.logger.Info("[crawl] Sink %T stored %d listings", sink, len(sum.Listings))
	}

	if p.printReport {
		insights := services.NewInsightService(p.logger)
		insights.Print(insights.Generate(sum.Listings))
	}
	return sum, nil
}

func (p *crawlPipeline) preview(table *models.Table) {
	n := min(previewRows, table.Len())
	p.logger.Info("[crawl] First %d rows:", n)
	for i := 0; i < n; i++ {
		cells := make([]string, 0, len(previewColumns))
		for _, col := range previewColumns {
			cells = append(cells, col+"="+table.Value(i, col))
		}
		p.logger.Info("[crawl]   %s", strings.Join(cells, " | "))
	}
}

// openSinks connects the optional listing sinks enabled in cfg. A sink that
// cannot be reached is skipped with an error log rather than failing the run.
func openSinks(ctx context.Context, cfg *config.Config, logger *utils.Logger) []storage.ListingSink {
	var sinks []storage.ListingSink
	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN())
		if err != nil {
			logger.Error("[crawl] PostgreSQL unavailable: %v", err)
		} else {
			sinks = append(sinks, pg)
		}
	}
	if cfg.AMQPEnabled {
		pub, err := storage.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Error("[crawl] RabbitMQ unavailable: %v", err)
		} else {
			sinks = append(sinks, pub)
		}
	}
	return sinks
}

func crawlCommand(ctx context.Context, cfg *config.Config, logger *utils.Logger, out io.Writer) error {
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		return err
	}

	scraper, err := naver.New(cfg, profile, logger)
	if err != nil {
		return err
	}

	sinks := openSinks(ctx, cfg, logger)
	defer func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}()

	p := &crawlPipeline{
		profile:     profile,
		collector:   scraper,
		writer:      storage.NewCSVWriter(cfg.OutputPath),
		sinks:       sinks,
		printReport: true,
		logger:      logger,
	}
	sum, err := p.run(ctx)
	if err != nil {
		return err
	}
	if sum.Written {
		fmt.Fprintf(out, "  Done. %d listings → %s\n\n", sum.Records, cfg.OutputPath)
	}
	return nil
}
