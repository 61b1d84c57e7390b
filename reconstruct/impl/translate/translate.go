package translate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	yaOpenai "github.com/visionex-project/docrecon/pkg/openai"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
)

var ErrIncompleteTranslation = errors.New("translation response is missing entries")

// Translator maps source texts to target-language texts, index for index.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error)
}

type Options struct {
	// E.g., gpt-4o-mini, gemini-1.5-flash
	Model string
	// Empty lets the model detect it. E.g., Ukrainian
	SourceLanguage string
	// Texts sent per request. E.g., 40
	BatchSize int
	// Used to delay the next request when the model fails or drops entries.
	BackoffDuration time.Duration
}

type chatTranslator struct {
	client  yaOpenai.Client
	options Options
}

// NewChat returns a translator that sends indexed batches to a chat completion backend.
func NewChat(client yaOpenai.Client, options Options) Translator {
	if options.BatchSize < 1 {
		options.BatchSize = 40
	}
	return &chatTranslator{client: client, options: options}
}

func (c *chatTranslator) Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	translations := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		if needsTranslation(text) {
			pending = append(pending, i)
		} else {
			translations[i] = text
		}
	}

	for start := 0; start < len(pending); start += c.options.BatchSize {
		batch := pending[start:min(start+c.options.BatchSize, len(pending))]
		batchTexts := make([]string, len(batch))
		for i, index := range batch {
			batchTexts[i] = texts[index]
		}

		translated, err := backoff.RetryWithData(func() ([]string, error) {
			return c.translateBatch(ctx, batchTexts, targetLanguage)
		}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.options.BackoffDuration), 4), ctx))
		if err != nil {
			log.Printf("Failed to translate %d texts: %v", len(batch), err)
			return nil, err
		}
		for i, index := range batch {
			translations[index] = translated[i]
		}
	}
	return translations, nil
}

func (c *chatTranslator) translateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	response, err := c.client.CreateChatCompletion(ctx, c.request(texts, targetLanguage))
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	content, err := yaOpenai.GetCompletionContent(response)
	if err != nil {
		return nil, fmt.Errorf("translation failed: %w", err)
	}
	return parseIndexed(content, len(texts))
}

func (c *chatTranslator) request(texts []string, targetLanguage string) openai.ChatCompletionRequest {
	system := "You are a professional translator. Translate text accurately while preserving the original meaning and tone."
	if containsPlaceholder(texts) {
		system += fmt.Sprintf(" Some texts contain the placeholder %s. Preserve every placeholder exactly; do not change their order or count.", document.Placeholder)
	}

	var combined strings.Builder
	for i, text := range texts {
		// One line per entry; line breaks inside a text would break the indexing.
		fmt.Fprintf(&combined, "[%d] %s\n", i, strings.Join(strings.Fields(text), " "))
	}

	source := ""
	if c.options.SourceLanguage != "" {
		source = " from " + c.options.SourceLanguage
	}
	prompt := fmt.Sprintf(`Translate the following texts%s to %s. Return only the translations in the same order, with each translation on a new line prefixed with its index number [0], [1], etc. Do not include any explanations or additional text.

%s`, source, targetLanguage, combined.String())

	return openai.ChatCompletionRequest{
		Model: c.options.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
	}
}

// parseIndexed reads "[i] translation" lines. Every index in [0, count) must be present.
// E.g., "[0] Hola\n[1] Mundo" -> ["Hola", "Mundo"]
func parseIndexed(content string, count int) ([]string, error) {
	translations := make([]string, count)
	found := make([]bool, count)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		end := strings.Index(line, "]")
		if end < 0 {
			continue
		}
		index, err := strconv.Atoi(line[1:end])
		if err != nil || index < 0 || index >= count {
			continue
		}
		translations[index] = strings.TrimSpace(line[end+1:])
		found[index] = true
	}

	var missing []string
	for i, ok := range found {
		if !ok {
			missing = append(missing, strconv.Itoa(i))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteTranslation, strings.Join(missing, ", "))
	}
	return translations, nil
}

// needsTranslation skips blank texts, numbers and texts made only of placeholders.
func needsTranslation(text string) bool {
	rest := strings.TrimSpace(strings.ReplaceAll(text, document.Placeholder, ""))
	if rest == "" {
		return false
	}
	return strings.IndexFunc(rest, func(r rune) bool {
		return !unicode.IsDigit(r)
	}) >= 0
}

func containsPlaceholder(texts []string) bool {
	for _, text := range texts {
		if strings.Contains(text, document.Placeholder) {
			return true
		}
	}
	return false
}

// Enrich translates every block of the document and stores the result as its translated text.
func Enrich(ctx context.Context, doc *document.Document, translator Translator, targetLanguage string) error {
	var texts []string
	for _, page := range doc.Pages {
		for _, block := range page.Blocks {
			texts = append(texts, block.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	translations, err := translator.Translate(ctx, texts, targetLanguage)
	if err != nil {
		return fmt.Errorf("failed to translate %s: %w", doc.URI, err)
	}
	if len(translations) != len(texts) {
		return fmt.Errorf("%w: got %d of %d", ErrIncompleteTranslation, len(translations), len(texts))
	}

	next := 0
	for i := range doc.Pages {
		for j := range doc.Pages[i].Blocks {
			translation := translations[next]
			doc.Pages[i].Blocks[j].TranslatedText = &translation
			next++
		}
	}
	return nil
}
