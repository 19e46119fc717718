package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"treacherest"
	"treacherest/internal/api"
	"treacherest/internal/archive"
	"treacherest/internal/cache"
	"treacherest/internal/config"
	"treacherest/internal/engine"
	"treacherest/internal/middleware"
	"treacherest/internal/model"
	"treacherest/internal/question"
	"treacherest/internal/room"
	"treacherest/internal/roomcode"
	"treacherest/internal/timers"
	"treacherest/internal/transport"
)

// app holds every long-lived collaborator SetupServer wires together,
// so main can reach the ones it needs at shutdown without re-wiring
// them, the way the teacher's main.go holds onto its own store/service
// handles across the lifetime of the process.
type app struct {
	handler http.Handler
	archive archive.SessionArchive
}

// SetupServer loads configuration and wires the full trivia stack
// behind a chi router, the way the teacher's SetupServer wires
// CardService/MemoryStore/Handler behind its router.
func SetupServer() *app {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	store := newCacheStore(cfg.Cache)
	issuer := roomcode.New(store)
	hub := transport.NewHub()
	pipeline := newQuestionPipeline(cfg.Question)
	arch := newArchive(cfg.Archive)

	rooms := room.NewManager(store, issuer, hub)
	reg := timers.New()
	eng := engine.New(store, hub, reg, pipeline, arch)
	h := api.New(rooms, eng, hub)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		connID := uuid.NewString()
		meta := transport.ConnMeta{Role: transport.RolePlayer}
		if req.URL.Query().Get("role") == "tv" {
			meta.Role = transport.RoleTV
		}
		if err := transport.ServeConn(w, req, hub, connID, meta,
			cfg.Server.RateLimit, cfg.Server.RateLimitBurst,
			h.Dispatch, h.OnDisconnect); err != nil {
			log.Printf("📨 transport: serve conn %s: %v", connID, err)
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		codes, err := store.ActiveCodes(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("cache unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK: " + strconv.Itoa(len(codes)) + " active rooms"))
	})

	r.Get("/debug/rooms", func(w http.ResponseWriter, req *http.Request) {
		codes, err := store.ActiveCodes(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		for _, code := range codes {
			w.Write([]byte(code + "\n"))
		}
	})

	return &app{handler: r, archive: arch}
}

func newCacheStore(cfg config.CacheSettings) cache.Store {
	if cfg.UseMemory {
		return cache.NewMemoryStore()
	}
	return cache.NewRedisStore(cfg.Address, cfg.Password, cfg.DB)
}

// newArchive opens a GormArchive when enabled, falling back to a
// no-op implementation. Grounded on the teacher's fail-fast
// CardService construction: a misconfigured archive path is an
// operator error worth stopping the process for, not swallowing.
func newArchive(cfg config.ArchiveSettings) archive.SessionArchive {
	if !cfg.Enabled {
		return archive.NoopArchive{}
	}
	a, err := archive.Open(cfg.Path)
	if err != nil {
		log.Fatal("Failed to open session archive: ", err)
	}
	return a
}

// newQuestionPipeline seeds a StaticCatalog from the embedded question
// bank and wires an HTTPProvider when OPENAI_API_KEY is set.
func newQuestionPipeline(cfg config.QuestionSettings) *question.Pipeline {
	seed, err := question.ParseSeedQuestions(treacherest.SeedQuestionsJSON)
	if err != nil {
		log.Fatal("Failed to parse seed question bank: ", err)
	}
	catalog := question.NewStaticCatalog(seed)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Print("🎮 question: OPENAI_API_KEY not set, quiz generation falls back to the seed bank only")
		return question.New(catalog, noopProvider{})
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	modelName := os.Getenv("OPENAI_MODEL")
	if modelName == "" {
		modelName = "gpt-4o"
	}
	_ = cfg.ProviderTimeout // unused: question.Pipeline.generate applies question.ProviderTimeout
	provider := question.NewHTTPProvider(baseURL, apiKey, modelName)
	return question.New(catalog, provider)
}

// noopProvider always reports no generated questions, so GenerateQuiz
// falls back to whatever the StaticCatalog already has rather than
// erroring outright when no external provider is configured.
type noopProvider struct{}

func (noopProvider) Generate(context.Context, string, model.Difficulty, int) (string, error) {
	return "", nil
}
