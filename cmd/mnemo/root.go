package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mnemo/internal/config"
	"mnemo/internal/conversation"
	"mnemo/internal/llm"
	"mnemo/internal/rag"
	"mnemo/internal/store"
	"mnemo/internal/strategy"
	"mnemo/internal/utils"
)

// Container holds the wired application graph for one command invocation.
type Container struct {
	Config  config.Config
	Store   *store.Store
	Keys    *llm.KeyRing
	Manager *conversation.Manager
}

// NewRootCommand builds the mnemo command tree.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mnemo",
		Short: "Persistent conversation memory for Gemini chat",
		Long: `mnemo keeps LLM conversations on disk and feeds them back to the model
with a pluggable memory strategy:

  plain      replay every turn verbatim
  summary    fold old turns into a rolling summary
  retrieval  recall prior turns by vector similarity

Contexts are plain JSON files; nothing leaves your machine except the
model calls themselves.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringP("strategy", "s", "plain", "Memory strategy: plain, summary or retrieval")
	rootCmd.PersistentFlags().String("data-dir", "", "Override the data directory")
	rootCmd.PersistentFlags().StringP("model", "m", "", "Override the chat model")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("strategy", rootCmd.PersistentFlags().Lookup("strategy"))
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))

	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// buildContainer loads configuration and wires the manager for the named
// strategy, applying command-line overrides on top of file and environment.
func buildContainer(strategyName string) (*Container, error) {
	var opts []config.Option
	if path := viper.GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}
	if dir := viper.GetString("data-dir"); dir != "" {
		cfg.DataDir = config.ResolvePath(dir)
	}
	if model := viper.GetString("model"); model != "" {
		cfg.ChatModel = model
	}

	contextStore, err := store.New(cfg.ContextsDir())
	if err != nil {
		return nil, err
	}
	keys, err := llm.NewKeyRing(cfg.APIKeys)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	clients := func(apiKey string) llm.Client {
		return llm.NewGeminiClient(llm.Config{
			APIKey:  apiKey,
			BaseURL: cfg.BaseURL,
			Timeout: timeout,
		})
	}

	strat, err := buildStrategy(strategyName, cfg, keys, timeout)
	if err != nil {
		return nil, err
	}

	manager, err := conversation.NewManager(conversation.ManagerConfig{
		Store:     contextStore,
		Strategy:  strat,
		Keys:      keys,
		Clients:   clients,
		ChatModel: cfg.ChatModel,
	})
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:  cfg,
		Store:   contextStore,
		Keys:    keys,
		Manager: manager,
	}, nil
}

func buildStrategy(name string, cfg config.Config, keys *llm.KeyRing, timeout time.Duration) (strategy.Strategy, error) {
	switch name {
	case "plain":
		return strategy.NewPlain(), nil
	case "summary":
		return strategy.NewSummarizing(cfg.SummaryThreshold, cfg.SummaryModel), nil
	case "retrieval":
		embedder, err := rag.NewEmbedder(rag.EmbedderConfig{
			Model:   cfg.EmbeddingModel,
			BaseURL: cfg.BaseURL,
			Keys:    keys,
			Timeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		vectors, err := rag.NewVectorStore(rag.StoreConfig{PersistPath: cfg.VectorsDir()}, embedder)
		if err != nil {
			return nil, err
		}
		return strategy.NewRetrieval(cfg.TopK, cfg.RelevanceThreshold, vectors, embedder), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want plain, summary or retrieval)", name)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mnemo version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mnemo %s\n", utils.Version)
		},
	}
}
