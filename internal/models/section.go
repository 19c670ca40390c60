package models

// SectionContract defines one ordered part of the target brief. Catalog order is
// generation order.
type SectionContract struct {
	ID               string   `yaml:"id" firestore:"id" json:"id"`
	Title            string   `yaml:"title" firestore:"title" json:"title"`
	Description      string   `yaml:"description" firestore:"description" json:"description"`
	MinTokens        int      `yaml:"minTokens" firestore:"minTokens" json:"minTokens"`
	MaxTokens        int      `yaml:"maxTokens" firestore:"maxTokens" json:"maxTokens"`
	RequiredElements []string `yaml:"requiredElements" firestore:"requiredElements" json:"requiredElements"`
}
