package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-coach/internal/config"
	"github.com/teslashibe/go-coach/internal/log"
	"github.com/teslashibe/go-coach/pkg/agent"
	"github.com/teslashibe/go-coach/pkg/hub"
	"github.com/teslashibe/go-coach/pkg/inference"
	"github.com/teslashibe/go-coach/pkg/stt"
	"github.com/teslashibe/go-coach/pkg/tts"
	"github.com/teslashibe/go-coach/pkg/web"
	"github.com/teslashibe/go-coach/pkg/workout"
)

var maxSessions int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept coaching sessions over WebRTC",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "limit concurrent sessions (0 = unlimited)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	engines, err := buildEngines(cfg)
	if err != nil {
		return err
	}

	fetcher := workout.NewFetcher(cfg.MetricsURL,
		workout.WithTimeout(cfg.MetricsTimeout),
		workout.WithLogger(log.Component("workout.fetcher")),
	)

	agentCfg := agent.DefaultConfig()
	agentCfg.LLMModel = cfg.LLMModel
	coach, err := agent.New(agentCfg, engines, fetcher)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debugHub := hub.New("debug")
	go debugHub.Run(ctx)

	opts := []agent.ManagerOption{
		agent.WithMirror(debugHub),
		agent.WithMaxSessions(maxSessions),
	}
	if rdb := connectRedis(ctx, cfg); rdb != nil {
		defer rdb.Close()
		opts = append(opts, agent.WithRedis(rdb))
	}
	manager := agent.NewManager(coach, opts...)

	server := web.NewServer(cfg.ListenAddr, manager,
		web.WithHub(debugHub),
		web.WithICEServers(cfg.ICEServers),
	)

	log.Info("coach ready",
		"addr", cfg.ListenAddr,
		"metrics_url", cfg.MetricsURL,
		"llm", cfg.LLMModel,
	)
	runErr := server.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Warn("sessions did not stop in time", "error", err)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func buildEngines(cfg *config.Config) (agent.Engines, error) {
	recognizer, err := stt.NewDeepgram(cfg.DeepgramAPIKey,
		stt.WithModel(cfg.STTModel),
		stt.WithLogger(log.Component("stt.deepgram")),
	)
	if err != nil {
		return agent.Engines{}, err
	}

	generator, err := inference.NewOpenAI(
		inference.WithAPIKey(cfg.OpenAIAPIKey),
		inference.WithBaseURL(cfg.OpenAIBaseURL),
		inference.WithModel(cfg.LLMModel),
		inference.WithLogger(log.L()),
	)
	if err != nil {
		return agent.Engines{}, err
	}

	synth, err := tts.NewOpenAI(
		tts.WithAPIKey(cfg.OpenAIAPIKey),
		tts.WithBaseURL(cfg.OpenAIBaseURL),
		tts.WithModel(cfg.TTSModel),
		tts.WithVoice(cfg.TTSVoice),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return agent.Engines{}, err
	}

	return agent.Engines{
		Recognizer:  recognizer,
		Generator:   generator,
		Synthesizer: synth,
	}, nil
}

// connectRedis returns a client when REDIS_URL is set and reachable.
// Redis is optional; without it sessions are simply not mirrored.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// plain host:port, as in REDIS_URL=localhost:6379
		opts = &redis.Options{Addr: cfg.RedisURL}
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, continuing without it", "addr", opts.Addr, "error", err)
		client.Close()
		return nil
	}
	log.Info("redis connected", "addr", opts.Addr)
	return client
}
