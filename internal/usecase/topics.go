package usecase

import "strings"

// GeneralTopic is used when neither keywords nor a community name apply.
const GeneralTopic = "general"

var topicKeywords = []struct {
	label    string
	keywords []string
}{
	{"elections", []string{"election", "vote", "campaign"}},
	{"corruption", []string{"corruption", "scandal", "bribery"}},
	{"infrastructure", []string{"infrastructure", "build", "project"}},
	{"education", []string{"education", "school", "student"}},
	{"healthcare", []string{"health", "hospital", "medical"}},
	{"economy", []string{"economy", "jobs", "unemployment"}},
	{"legislation", []string{"law", "bill", "legislation"}},
}

// ExtractTopic returns the first keyword group found in content, else the
// community name, else GeneralTopic.
func ExtractTopic(content, community string) string {
	lower := strings.ToLower(content)
	for _, topic := range topicKeywords {
		for _, kw := range topic.keywords {
			if strings.Contains(lower, kw) {
				return topic.label
			}
		}
	}
	if community = strings.TrimSpace(community); community != "" {
		return community
	}
	return GeneralTopic
}
