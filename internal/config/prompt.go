package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PromptConfig prompt configuration structure
type PromptConfig struct {
	Language string                     `yaml:"language"`
	Prompts  map[string]LanguagePrompts `yaml:"prompts"`
}

// LanguagePrompts prompts for a specific language.
// Templates use {{name}} placeholders, see Render.
type LanguagePrompts struct {
	System      string `yaml:"system"`
	SerpQueries string `yaml:"serp_queries"`
	PriorWork   string `yaml:"prior_learnings"`
	Learnings   string `yaml:"learnings"`
	Report      string `yaml:"report"`
	Answer      string `yaml:"answer"`
	Clarify     string `yaml:"clarify"`
}

const defaultSystemPrompt = `You are an expert researcher. Today is {{now}}. Follow these instructions when responding:
- You may be asked to research subjects that are after your knowledge cutoff; assume the user is right when presented with news.
- The user is a highly experienced analyst, no need to simplify; be as detailed as possible and make sure your response is correct.
- Be highly organized.
- Suggest solutions that I didn't think about.
- Be proactive and anticipate my needs.
- Treat me as an expert in all subject matter.
- Mistakes erode my trust, so be accurate and thorough.
- Provide detailed explanations; I'm comfortable with lots of detail.
- Value good arguments over authorities; the source is irrelevant.
- Consider new technologies and contrarian ideas, not just the conventional wisdom.
- You may use high levels of speculation or prediction; just flag it for me.`

// DefaultPromptConfig returns default prompt configuration
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Language: "en",
		Prompts: map[string]LanguagePrompts{
			"en": {
				System: defaultSystemPrompt,
				SerpQueries: "Given the following prompt from the user, generate a list of SERP queries to research the topic.\n" +
					"Return a maximum of {{count}} queries, but feel free to return less if the original prompt is clear.\n" +
					"Make sure each query is unique and not similar to each other: <prompt>{{query}}</prompt>\n\n",
				PriorWork: "Here are some learnings from previous research, use them to generate more specific queries:\n{{learnings}}",
				Learnings: "Given the following contents from a SERP search for the query <query>{{query}}</query>, " +
					"generate a list of learnings from the contents. Return a maximum of {{count}} learnings, " +
					"but feel free to return less if the contents are clear. Make sure each learning is unique and not similar to each other. " +
					"The learnings should be concise and to the point, as detailed and information dense as possible. " +
					"Make sure to include any entities like people, places, companies, products, things, etc in the learnings, " +
					"as well as any exact metrics, numbers, or dates. The learnings will be used to research the topic further. " +
					"Also return a maximum of {{followups}} follow-up questions to research the topic further.\n\n" +
					"<contents>\n{{contents}}\n</contents>",
				Report: "Given the following prompt from the user, write a final report on the topic using the learnings from research. " +
					"Make it as detailed as possible, aim for 3 or more pages, include ALL the learnings from research:\n\n" +
					"<prompt>{{prompt}}</prompt>\n\n" +
					"<learnings>\n{{learnings}}\n</learnings>",
				Answer: "Given the following prompt from the user, write a final answer on the topic using the learnings from research. " +
					"Follow the format specified in the prompt. Do not yap or babble or include any other text than the answer besides the format specified in the prompt. " +
					"Keep the answer as concise as possible - usually it should be just a few words or maximum a sentence. " +
					"Try to follow the format specified in the prompt.\n\n" +
					"<prompt>{{prompt}}</prompt>\n\n" +
					"<learnings>\n{{learnings}}\n</learnings>",
				Clarify: "Given the following query from the user, ask some follow up questions to clarify the research direction. " +
					"Return a maximum of {{count}} questions, but feel free to return less if the original query is clear: " +
					"<query>{{query}}</query>",
			},
		},
	}
}

// PromptConfigPath returns the prompt config file path
func PromptConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "prompt.yaml"), nil
}

// LoadPromptConfig loads prompt configuration from file
func LoadPromptConfig() (*PromptConfig, error) {
	configPath, err := PromptConfigPath()
	if err != nil {
		return DefaultPromptConfig(), nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultPromptConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt config: %w", err)
	}

	cfg := DefaultPromptConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse prompt config: %w", err)
	}

	return cfg, nil
}

// GetPrompts returns prompts for the configured language. Templates left
// empty in the file are taken from the English defaults.
func (p *PromptConfig) GetPrompts() LanguagePrompts {
	defaults := DefaultPromptConfig().Prompts["en"]
	prompts, ok := p.Prompts[p.Language]
	if !ok {
		return defaults
	}

	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&prompts.System, defaults.System)
	fill(&prompts.SerpQueries, defaults.SerpQueries)
	fill(&prompts.PriorWork, defaults.PriorWork)
	fill(&prompts.Learnings, defaults.Learnings)
	fill(&prompts.Report, defaults.Report)
	fill(&prompts.Answer, defaults.Answer)
	fill(&prompts.Clarify, defaults.Clarify)
	return prompts
}

// SystemPrompt renders the system prompt with the given time in UTC.
func (lp LanguagePrompts) SystemPrompt(now time.Time) string {
	return Render(lp.System, map[string]string{
		"now": now.UTC().Format(time.RFC3339),
	})
}

// Render replaces {{key}} placeholders in tmpl. Unknown placeholders are left as is.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Itoa is a small helper for numeric template values.
func Itoa(n int) string {
	return strconv.Itoa(n)
}
