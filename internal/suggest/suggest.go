package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bilancio/internal/core"
)

// Provider turns a weekly spending summary into one short piece of
// advice for the user.
type Provider interface {
	Suggest(ctx context.Context, review core.WeeklyReview) (string, error)
}

// RuleBased derives advice from the top spending category. It never
// fails, so it doubles as the fallback behind remote providers.
type RuleBased struct {
	advice map[string]string
}

func NewRuleBased() *RuleBased {
	return &RuleBased{
		advice: map[string]string{
			"house":         "Housing led your spending this week. Fixed costs are hard to move quickly, but check whether utilities or contracts are up for renegotiation.",
			"health":        "Health was your biggest expense this week. That is usually money well spent, just make sure recurring costs like gym or therapy still earn their keep.",
			"supermarket":   "Groceries topped your spending this week. Planning meals before shopping tends to trim this category without much effort.",
			"fun":           "Leisure led your spending this week. Nothing wrong with that, but set a number for next week before the week starts.",
			"subscriptions": "Subscriptions were your biggest expense this week. Walk the list and cancel anything you did not open this month.",
		},
	}
}

// Suggest produces a canned tip keyed on the largest category of the
// review. Categories are already ordered largest first.
func (r *RuleBased) Suggest(_ context.Context, review core.WeeklyReview) (string, error) {
	if len(review.ByCategory) == 0 || review.Total.Cents == 0 {
		return "No spending recorded for this week. Keep logging transactions so the review has something to work with.", nil
	}

	top := review.ByCategory[0]
	if tip, ok := r.advice[top.CategoryKey]; ok {
		return tip, nil
	}
	return fmt.Sprintf("Most of this week's %s went to %s. Decide whether that matches your priorities before next week.",
		review.Total.Decimal(), top.CategoryKey), nil
}

// HTTPProvider posts the review summary to an external advice service,
// falling back to rules when the service is unreachable or answers
// badly. Suggestions are advisory, so a broken remote never surfaces
// as a request failure.
type HTTPProvider struct {
	url      string
	client   *http.Client
	fallback Provider
}

func NewHTTPProvider(url string, fallback Provider) *HTTPProvider {
	return &HTTPProvider{
		url:      url,
		client:   &http.Client{Timeout: 5 * time.Second},
		fallback: fallback,
	}
}

type summaryCategory struct {
	CategoryKey string `json:"category_key"`
	TotalAmount string `json:"total_amount"`
}

type summaryRequest struct {
	StartDate   core.Date         `json:"start_date"`
	EndDate     core.Date         `json:"end_date"`
	TotalAmount string            `json:"total_amount"`
	ByCategory  []summaryCategory `json:"by_category"`
}

type suggestionResponse struct {
	Suggestion string `json:"suggestion"`
}

func (p *HTTPProvider) Suggest(ctx context.Context, review core.WeeklyReview) (string, error) {
	tip, err := p.remote(ctx, review)
	if err != nil {
		return p.fallback.Suggest(ctx, review)
	}
	return tip, nil
}

func (p *HTTPProvider) remote(ctx context.Context, review core.WeeklyReview) (string, error) {
	payload := summaryRequest{
		StartDate:   review.StartDate,
		EndDate:     review.EndDate,
		TotalAmount: review.Total.Decimal(),
		ByCategory:  make([]summaryCategory, 0, len(review.ByCategory)),
	}
	for _, ct := range review.ByCategory {
		payload.ByCategory = append(payload.ByCategory, summaryCategory{
			CategoryKey: ct.CategoryKey,
			TotalAmount: ct.Total.Decimal(),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call suggestion service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("suggestion service status %d", resp.StatusCode)
	}

	var out suggestionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if strings.TrimSpace(out.Suggestion) == "" {
		return "", fmt.Errorf("empty suggestion from service")
	}
	return out.Suggestion, nil
}
