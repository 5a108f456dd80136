package http

import (
	"net/http"

	"tally/internal/analytics"
	"tally/internal/core"
)

type dailyPointResponse struct {
	Date            string `json:"date"`
	Amount          string `json:"amount"`
	AmountCents     int64  `json:"amount_cents"`
	Cumulative      string `json:"cumulative"`
	CumulativeCents int64  `json:"cumulative_cents"`
}

type groupTotalResponse struct {
	Name        string  `json:"name"`
	Amount      string  `json:"amount"`
	AmountCents int64   `json:"amount_cents"`
	SharePct    float64 `json:"share_pct"`
}

type summaryResponse struct {
	Total           string          `json:"total"`
	TotalCents      int64           `json:"total_cents"`
	Count           int             `json:"count"`
	Average         string          `json:"average"`
	AverageCents    int64           `json:"average_cents"`
	Categories      int             `json:"categories"`
	TotalDelta      analytics.Delta `json:"total_delta_pct"`
	CountDelta      analytics.Delta `json:"count_delta_pct"`
	AverageDelta    analytics.Delta `json:"average_delta_pct"`
	CategoriesDelta analytics.Delta `json:"categories_delta_pct"`
}

type reportResponse struct {
	Start        string               `json:"start"`
	End          string               `json:"end"`
	Daily        []dailyPointResponse `json:"daily"`
	Categories   []groupTotalResponse `json:"categories"`
	TopMerchants []groupTotalResponse `json:"top_merchants"`
	Summary      summaryResponse      `json:"summary"`
}

type dashboardResponse struct {
	Report      reportResponse      `json:"report"`
	ReviewStats reviewStatsResponse `json:"review_stats"`
}

func toGroupTotals(groups []analytics.GroupTotal) []groupTotalResponse {
	out := make([]groupTotalResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupTotalResponse{
			Name:        g.Name,
			Amount:      core.FormatCents(g.Cents),
			AmountCents: g.Cents,
			SharePct:    g.SharePct,
		})
	}
	return out
}

func (s *Server) handleAnalyticsReport(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := queryInt(r, "top", s.topMerchants)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.analytics.MonthlyReport(r.Context(), year, month, top)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func toReportResponse(report analytics.Report) reportResponse {
	daily := make([]dailyPointResponse, 0, len(report.Daily))
	for _, pt := range report.Daily {
		daily = append(daily, dailyPointResponse{
			Date:            pt.Day.String(),
			Amount:          core.FormatCents(pt.Cents),
			AmountCents:     pt.Cents,
			Cumulative:      core.FormatCents(pt.CumulativeCents),
			CumulativeCents: pt.CumulativeCents,
		})
	}

	return reportResponse{
		Start:        report.Period.Start.String(),
		End:          report.Period.End.String(),
		Daily:        daily,
		Categories:   toGroupTotals(report.Categories),
		TopMerchants: toGroupTotals(report.TopMerchants),
		Summary: summaryResponse{
			Total:           core.FormatCents(report.Summary.TotalCents),
			TotalCents:      report.Summary.TotalCents,
			Count:           report.Summary.Count,
			Average:         core.FormatCents(report.Summary.AverageCents),
			AverageCents:    report.Summary.AverageCents,
			Categories:      report.Summary.Categories,
			TotalDelta:      report.Summary.TotalDelta,
			CountDelta:      report.Summary.CountDelta,
			AverageDelta:    report.Summary.AverageDelta,
			CategoriesDelta: report.Summary.CategoriesDelta,
		},
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	top, err := queryInt(r, "top", s.topMerchants)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dash, err := s.analytics.Dashboard(r.Context(), year, month, top)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Report: toReportResponse(dash.Report),
		ReviewStats: reviewStatsResponse{
			Total:        dash.ReviewStats.Total,
			Pending:      dash.ReviewStats.Pending,
			Approved:     dash.ReviewStats.Approved,
			Rejected:     dash.ReviewStats.Rejected,
			ApprovalRate: dash.ReviewStats.ApprovalRate,
		},
	})
}
