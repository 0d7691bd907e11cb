package naver

import (
	"context"

	"naver-estate/models"
	"naver-estate/utils"
)

// PageFetcher returns a page or a terminal error for it.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*models.Page, error)
}

// Result is the accumulator of one collection run.
type Result struct {
	Articles []models.Article
	// Pages is the number of the last page fetched successfully.
	Pages int
}

// Collect walks pages in ascending order starting at 1 until a page is empty
// or reports no continuation. A terminal failure on any page aborts the run;
// the articles gathered so far are returned alongside the error.
func Collect(ctx context.Context, f PageFetcher, logger *utils.Logger) (Result, error) {
	var acc Result

	for page := 1; ; page++ {
		p, err := f.FetchPage(ctx, page)
		if err != nil {
			logger.Error("[naver] Page %d failed: %v", page, err)
			return acc, err
		}
		acc.Pages = page

		if p.Empty() {
			logger.Info("[naver] Page %d is empty, no more data", page)
			return acc, nil
		}

		acc.Articles = append(acc.Articles, p.Body...)
		logger.Info("[naver] Page %d done: %d articles, %d collected so far", page, len(p.Body), len(acc.Articles))

		if !p.More {
			logger.Info("[naver] Page %d is the last page", page)
			return acc, nil
		}
	}
}
