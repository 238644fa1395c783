package classify

import "fmt"

// SystemPrompt is sent with every chat-style classification request.
const SystemPrompt = "You are a political sentiment analyst specializing in Philippine politics. " +
	"Always respond with valid JSON only, no markdown formatting."

// UserPrompt asks for the verdict of a single post.
func UserPrompt(content string) string {
	return fmt.Sprintf(`Analyze the following social media post about Philippine politics. Provide:
1. Overall sentiment (positive, negative, or neutral)
2. Sentiment score from -1.0 (very negative) to +1.0 (very positive)
3. Key topics or themes (max 5, as array)
4. Brief summary (2-3 sentences)

Post: %q

Respond ONLY with valid JSON in this exact format:
{
  "sentiment": "positive|negative|neutral",
  "sentiment_score": 0.5,
  "key_topics": ["topic1", "topic2"],
  "summary": "Brief summary here"
}`, content)
}
