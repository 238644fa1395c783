package domain

// TopicCount is how often a post topic occurs among analyzed posts.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// KeywordCount is how often a classifier key topic occurs.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// TopicTally holds raw topic and keyword frequencies over a sample of analyzed posts.
type TopicTally struct {
	Topics   map[string]int
	Keywords map[string]int
}

// DailySentiment aggregates analyzed posts created on one UTC day.
type DailySentiment struct {
	Date     string  `json:"date"`
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Neutral  int     `json:"neutral"`
	Total    int     `json:"total"`
	AvgScore float64 `json:"avgScore"`
}

