package llm

import "fmt"

const SystemPrompt = "You are an expert analyst that identifies and structures impacts from text content. " +
	"You provide balanced analysis with both positive and negative impacts when present."

// UserPrompt asks for the AnalysisData JSON shape for content.
func UserPrompt(content string) string {
	return fmt.Sprintf(`Analyze the following article and identify its impacts.

Article:
%s

Identify the main entity causing the impacts (the impacting entity) and every entity affected by it.
For each impacted entity describe the impact, give a score between -1 (very negative) and 1 (very positive),
a confidence between 0 and 1, and supporting evidence quoted or paraphrased from the article.
Include both positive and negative impacts when present. Only include source_url when the article
itself names a real link; never invent one.

Respond with a single JSON object in exactly this format:
{
  "article_title": "title of the article",
  "article_url": "",
  "impacting_entity": "entity causing the impacts",
  "impacts": [
    {
      "impacted_entity": "affected entity",
      "impact": "description of the impact",
      "score": 0.5,
      "confidence": 0.8,
      "source": "system",
      "supporting_evidence": [
        {"description": "evidence from the article", "source_url": "", "source": "system"}
      ]
    }
  ]
}`, content)
}
