package models

// Requests for the brief HTTP endpoints. Defined in domain for consistency and reuse.

type DailyReportRequest struct {
	Symbols  []string `json:"symbols" query:"symbols" validate:"omitempty,max=20,symbols"`
	Keywords []string `json:"keywords" query:"keywords" validate:"omitempty,max=20"`
	TZ       string   `json:"tz" query:"tz" default:"Asia/Seoul" validate:"required,timezone"`
}

type MorningBriefRequest struct {
	Date     string `query:"date" json:"date" validate:"omitempty,datetime=2006-01-02"`
	Symbols  string `query:"symbols" json:"symbols" default:"BTC,ETH" validate:"symbols"`
	Keywords string `query:"keywords" json:"keywords" default:"bitcoin,ethereum"`
	TZ       string `query:"tz" json:"tz" default:"Asia/Seoul" validate:"required,timezone"`
}

type SymbolsRequest struct {
	Symbols string `query:"symbols" json:"symbols" default:"BTC,ETH" validate:"required,symbols"`
}

type KeywordsRequest struct {
	Keywords string `query:"keywords" json:"keywords" default:"bitcoin,ethereum" validate:"required"`
}
