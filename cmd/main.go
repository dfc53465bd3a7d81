package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"policy-rag/internal/config"
	"policy-rag/internal/embedding"
	"policy-rag/internal/helper"
	"policy-rag/internal/llmservice"
	"policy-rag/internal/rag"
	"policy-rag/internal/store"
	"policy-rag/internal/vectorcache"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// .env keeps API keys out of the config file
	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	documentURL := flag.String("url", "", "Document URL to ingest or answer against")
	category := flag.String("category", "", "Insurance category (Health, Motor, Travel)")
	name := flag.String("name", "", "Policy name")
	year := flag.String("year", "", "Policy year")
	publish := flag.Bool("publish", false, "Publish the policy on create")
	publishID := flag.String("publish-id", "", "Policy ID to toggle published state for")
	published := flag.Bool("published", true, "Published state used with -publish-id")
	list := flag.Bool("list", false, "List stored policy versions")
	top := flag.Int("top", 0, "Show the N most asked questions")
	recent := flag.Int("recent", 0, "Show the N most recent query log entries")
	dryRun := flag.Bool("dry-run", false, "Extract only, do not save to database")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx := context.Background()
	questions := flag.Args()

	switch {
	case *list:
		listPolicies(ctx, cfg)
	case *top > 0 || *recent > 0:
		showAnalytics(ctx, cfg, *top, *recent)
	case *publishID != "":
		setPublished(ctx, cfg, *publishID, *published)
	case *documentURL != "" && *name != "":
		req := rag.PolicyRequest{
			InsuranceType: *category,
			PolicyName:    *name,
			PolicyYear:    *year,
			DocumentURL:   *documentURL,
			Publish:       *publish,
		}
		ingestPolicy(ctx, cfg, req, *dryRun)
	case *documentURL != "":
		answerDocument(ctx, cfg, *documentURL, questions)
	case *name != "" && len(questions) > 0:
		queryPolicy(ctx, cfg, *category, *name, *year, questions)
	default:
		log.Fatal().Msg("Provide -url with -name to ingest a policy, -url with questions for one-shot answers, or -name with questions to query a published policy")
	}
}

func openStore(cfg *config.Config) *store.Store {
	sqldb, err := store.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	return store.New(sqldb, cfg.Database.Debug)
}

func openCache(cfg *config.Config) rag.VectorCache {
	if !cfg.Cache.Enabled {
		return nil
	}
	if err := helper.CreateFolder(cfg.Cache.Path); err != nil {
		log.Fatal().Err(err).Msg("Error creating cache folder")
	}
	cache, err := vectorcache.New(cfg.Cache.Path, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector cache")
	}
	return cache
}

func newPipeline(cfg *config.Config, policyStore rag.PolicyStore) *rag.Pipeline {
	embedder, err := embedding.NewProvider(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	synth, err := llmservice.NewSynthesizer(&cfg.InferLLM, &cfg.RAG)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing synthesizer")
	}
	return rag.NewPipeline(policyStore, openCache(cfg), embedder, synth, cfg)
}

func ingestPolicy(ctx context.Context, cfg *config.Config, req rag.PolicyRequest, dryRun bool) {
	if dryRun {
		pipeline := rag.NewPipeline(nil, nil, nil, nil, cfg)
		chunks, err := pipeline.Ingest(ctx, req.DocumentURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Error extracting document")
		}
		helper.PrettyPrint(chunks)
		return
	}

	st := openStore(cfg)
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	pipeline := newPipeline(cfg, st)
	policy, err := pipeline.CreatePolicy(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating policy")
	}
	log.Info().
		Str("id", policy.ID).
		Str("policy", policy.PolicyName).
		Int("chunks", len(policy.Chunks)).
		Bool("published", policy.Published).
		Msg("Stored policy version")
}

func setPublished(ctx context.Context, cfg *config.Config, id string, published bool) {
	st := openStore(cfg)
	defer st.Close()

	pipeline := rag.NewPipeline(st, openCache(cfg), nil, nil, cfg)
	policy, err := pipeline.SetPublished(ctx, id, published)
	if err != nil {
		log.Fatal().Err(err).Msg("Error updating policy")
	}
	log.Info().Str("id", policy.ID).Bool("published", policy.Published).Msg("Updated policy")
}

func queryPolicy(ctx context.Context, cfg *config.Config, category, name, year string, questions []string) {
	st := openStore(cfg)
	defer st.Close()

	pipeline := newPipeline(cfg, st)
	answers, err := pipeline.Query(ctx, category, name, year, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying policy")
	}
	printAnswers(questions, answers)
}

func answerDocument(ctx context.Context, cfg *config.Config, documentURL string, questions []string) {
	if len(questions) == 0 {
		log.Fatal().Msg("Provide at least one question after the flags")
	}
	pipeline := newPipeline(cfg, nil)
	answers, err := pipeline.Answer(ctx, documentURL, questions)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering questions")
	}
	printAnswers(questions, answers)
}

func printAnswers(questions, answers []string) {
	for i := range questions {
		log.Info().Msg("Question: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", questions[i])
		log.Info().Msg("Answer: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", answers[i])
	}
}

func listPolicies(ctx context.Context, cfg *config.Config) {
	st := openStore(cfg)
	defer st.Close()

	policies, err := st.ListPolicies(ctx, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing policies")
	}
	for _, p := range policies {
		log.Info().
			Str("id", p.ID).
			Str("category", p.InsuranceType).
			Str("policy", p.PolicyName).
			Str("year", p.PolicyYear).
			Bool("published", p.Published).
			Int("chunks", len(p.Chunks)).
			Msg("Policy version")
	}
}

func showAnalytics(ctx context.Context, cfg *config.Config, top, recent int) {
	st := openStore(cfg)
	defer st.Close()

	if top > 0 {
		rows, err := st.TopQuestions(ctx, top)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading top questions")
		}
		log.Info().Msg("Top questions: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		helper.PrettyPrint(rows)
	}
	if recent > 0 {
		logs, err := st.RecentQueries(ctx, recent)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading recent queries")
		}
		log.Info().Msg("Recent queries: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		helper.PrettyPrint(logs)
	}
}
