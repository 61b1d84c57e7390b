package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gcs "cloud.google.com/go/storage"
	vision "cloud.google.com/go/vision/apiv1"
	"github.com/google/generative-ai-go/genai"
	"github.com/ridge/must/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/visionex-project/docrecon/pkg/env"
	yaOpenai "github.com/visionex-project/docrecon/pkg/openai"
	"github.com/visionex-project/docrecon/reconstruct/impl"
	"github.com/visionex-project/docrecon/reconstruct/impl/document"
	"github.com/visionex-project/docrecon/reconstruct/impl/font"
	"github.com/visionex-project/docrecon/reconstruct/impl/ocr"
	"github.com/visionex-project/docrecon/reconstruct/impl/storage"
	"github.com/visionex-project/docrecon/reconstruct/impl/translate"
)

var (
	sourceURI      = flag.String("source", "", "URI of the scanned document. E.g., file:///tmp/scan.pdf, gs://bucket/scan.png")
	manifestURI    = flag.String("manifest", "", "URI of a serialized document (blocks and translations). Page images are reloaded from its source URI")
	ocrProvider    = flag.String("ocr", "", "OCR provider to detect blocks with: vision or documentai. Empty keeps the blocks of the manifest")
	targetLanguage = flag.String("translate", "", "Language to translate blocks into. E.g., English. Empty keeps the existing translations")
	translatorName = flag.String("translator", "openai", "Chat backend used for translation: openai or gemini")
	outputURI      = flag.String("output", "", "URI the reconstructed PDF is written to")
	manifestOutURI = flag.String("manifest-out", "", "URI the detected and translated document is written to")
	strategy       = flag.String("strategy", "", "Background strategy: per-block, per-page, median or none")
	configPath     = flag.String("config", "", "YAML file overriding the engine configuration")
	previewDir     = flag.String("preview-dir", "", "Directory to write a PNG preview of every reconstructed page into")
	visualizeDir   = flag.String("visualize-dir", "", "Directory to write the detected regions of every page into")
)

func main() {
	flag.Parse()
	env.Load()

	if (*sourceURI == "") == (*manifestURI == "") {
		log.Fatalf("Exactly one of -source and -manifest is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	config := loadConfig()
	fonts := must.OK1(font.New(env.StringVariable("FONT_DIR", ""), env.StringVariable("FONT_FAMILY", font.DefaultFamily)))
	storageClient := newStorage(ctx, *sourceURI, *manifestURI, *outputURI, *manifestOutURI)

	doc := loadDocument(ctx, storageClient)
	log.Printf("Loaded %s: %d pages (%s)", doc.URI, len(doc.Pages), doc.FileFormat)

	if *ocrProvider != "" {
		must.OK(ocr.Annotate(ctx, doc, newOCRProvider(ctx, *ocrProvider)))
	}
	if *targetLanguage != "" {
		must.OK(translate.Enrich(ctx, doc, newTranslator(ctx, *translatorName), *targetLanguage))
	}
	if *manifestOutURI != "" {
		must.OK(storageClient.Write(ctx, *manifestOutURI, must.OK1(document.Marshal(doc))))
	}
	if *visualizeDir != "" {
		for _, page := range doc.Pages {
			writePage(*visualizeDir, "regions", page.Number, must.OK1(impl.Visualize(page)))
		}
	}

	engine := impl.New(config, fonts, storageClient)
	if *previewDir != "" {
		for _, page := range doc.Pages {
			preview, err := engine.Preview(ctx, doc, page.Number)
			if err != nil {
				log.Printf("Failed to preview page %d: %v", page.Number, err)
				continue
			}
			writePage(*previewDir, "preview", page.Number, preview)
		}
	}
	if *outputURI == "" {
		return
	}

	result := must.OK1(engine.Reconstruct(ctx, doc))
	for _, warning := range result.Warnings {
		log.Printf("Warning: %v", warning)
	}
	if result.PlaceholderMismatch {
		log.Printf("Job %s drew source text for translations with mismatching placeholders", result.JobID)
	}
	must.OK(engine.Save(ctx, result, *outputURI))
}

// loadConfig layers environment variables, then the YAML file, then flags over the defaults.
func loadConfig() impl.Config {
	config := impl.DefaultConfig()
	config.Workers = env.IntVariable("RECONSTRUCT_WORKERS", config.Workers)
	config.Background.Strategy = impl.Strategy(env.StringVariable("RECONSTRUCT_STRATEGY", string(config.Background.Strategy)))
	config.Filter.MinConfidence = env.FloatVariable("RECONSTRUCT_MIN_CONFIDENCE", config.Filter.MinConfidence)
	config.Filter.MaxIoU = env.FloatVariable("RECONSTRUCT_MAX_IOU", config.Filter.MaxIoU)
	config.PreserveInkColor = env.BoolVariable("RECONSTRUCT_PRESERVE_INK_COLOR", config.PreserveInkColor)
	config.Output.Optimize = env.BoolVariable("RECONSTRUCT_OPTIMIZE_PDF", config.Output.Optimize)

	path := *configPath
	if path == "" {
		path = env.StringVariable("RECONSTRUCT_CONFIG_FILE", "")
	}
	if path != "" {
		config = must.OK1(impl.LoadConfigFile(path, config))
	}
	if *strategy != "" {
		config.Background.Strategy = impl.Strategy(*strategy)
	}
	must.OK(config.Validate())
	return config
}

// newStorage serves file URIs, and gs URIs when any of the given URIs needs them.
func newStorage(ctx context.Context, uris ...string) storage.Client {
	clients := map[string]storage.Client{"file": storage.NewFile()}
	for _, uri := range uris {
		if strings.HasPrefix(uri, "gs://") {
			clients["gs"] = storage.NewGCS(must.OK1(gcs.NewClient(ctx)), time.Second/2 /* =backoffDuration */)
			break
		}
	}
	return storage.NewRouter(clients)
}

func loadDocument(ctx context.Context, storageClient storage.Client) *document.Document {
	if *sourceURI != "" {
		return must.OK1(document.Load(ctx, *sourceURI, storageClient))
	}
	doc := must.OK1(document.Unmarshal(must.OK1(storageClient.Read(ctx, *manifestURI))))
	must.OK(document.Reload(ctx, doc, storageClient))
	return doc
}

func newOCRProvider(ctx context.Context, name string) ocr.Provider {
	switch name {
	case "vision":
		var hints []string
		if value := env.StringVariable("OCR_LANGUAGE_HINTS", ""); value != "" {
			hints = strings.Split(value, ",")
		}
		return ocr.NewVision(must.OK1(vision.NewImageAnnotatorClient(ctx)), hints)
	case "documentai":
		client := must.OK1(documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(env.RequiredStringVariable("DOCUMENTAI_ENDPOINT"))))
		return ocr.NewDocumentAI(client, ocr.ProcessorSpec{
			ProjectID:   env.RequiredStringVariable("GCP_PROJECT_ID"),
			Location:    env.RequiredStringVariable("DOCUMENTAI_LOCATION"),
			ProcessorID: env.RequiredStringVariable("DOCUMENTAI_PROCESSOR_ID"),
		})
	default:
		log.Fatalf("Unknown OCR provider %q", name)
		return nil
	}
}

func newTranslator(ctx context.Context, name string) translate.Translator {
	options := translate.Options{
		SourceLanguage:  env.StringVariable("TRANSLATE_SOURCE_LANGUAGE", ""),
		BatchSize:       env.IntVariable("TRANSLATE_BATCH_SIZE", 40),
		BackoffDuration: time.Second / 2,
	}
	switch name {
	case "openai":
		options.Model = env.StringVariable("OPENAI_MODEL", openai.GPT3Dot5Turbo)
		key := apiKey(ctx, "OPENAI_API_KEY", "OPENAI_KEY_SECRET_NAME")
		return translate.NewChat(yaOpenai.NewAdapter(openai.NewClient(key)), options)
	case "gemini":
		options.Model = env.StringVariable("GEMINI_MODEL", string(translate.GeminiModelFlash))
		key := apiKey(ctx, "GEMINI_API_KEY", "GEMINI_API_KEY_SECRET_NAME")
		return translate.NewChat(translate.NewGemini(must.OK1(genai.NewClient(ctx, option.WithAPIKey(key)))), options)
	default:
		log.Fatalf("Unknown translator %q", name)
		return nil
	}
}

// apiKey prefers a key set directly in the environment (for local development) over Secret Manager.
func apiKey(ctx context.Context, variable string, secretVariable string) string {
	if key := os.Getenv(variable); key != "" {
		return key
	}
	secretmanagerClient := must.OK1(secretmanager.NewClient(ctx))
	defer secretmanagerClient.Close()
	return secretFromGCP(secretmanagerClient, ctx, env.RequiredStringVariable(secretVariable))
}

func secretFromGCP(secretmanagerClient *secretmanager.Client, ctx context.Context, secretName string) string {
	secretValue := must.OK1(secretmanagerClient.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest",
			env.RequiredStringVariable("GCP_PROJECT_ID"),
			secretName,
		),
	}))
	return string(secretValue.Payload.Data)
}

func writePage(dir string, kind string, number int, data []byte) {
	must.OK(os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, fmt.Sprintf("%s-%03d.png", kind, number))
	must.OK(os.WriteFile(path, data, 0o644))
	log.Printf("Wrote %s", path)
}
