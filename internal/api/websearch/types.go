package websearch

// Result is a normalized answer from whichever provider served the query.
type Result struct {
	Query    string  `json:"query"`
	Provider string  `json:"provider"`
	Answer   string  `json:"answer"`
	Source   string  `json:"source,omitempty"`
	Topics   []Topic `json:"related_topics,omitempty"`
}

// Topic is a related link from the instant-answer API.
type Topic struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type instantAnswer struct {
	Heading        string         `json:"Heading"`
	AbstractText   string         `json:"AbstractText"`
	AbstractSource string         `json:"AbstractSource"`
	AbstractURL    string         `json:"AbstractURL"`
	RelatedTopics  []relatedTopic `json:"RelatedTopics"`
}

// relatedTopic is either a leaf (Text, FirstURL) or a named group of leaves.
type relatedTopic struct {
	Text     string         `json:"Text"`
	FirstURL string         `json:"FirstURL"`
	Name     string         `json:"Name"`
	Topics   []relatedTopic `json:"Topics"`
}
