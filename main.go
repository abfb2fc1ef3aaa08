package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// 1) Catalog
	catalog := DefaultCatalog()
	if path := "data/questions.json"; fileExists(path) {
		c, err := LoadCatalogFromJSON(path)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		catalog = c
		log.Printf("Loaded %d questions from %s", catalog.Total(), path)
	} else {
		log.Printf("No catalog file at data/questions.json; using the built-in questionnaire (%d questions)", catalog.Total())
	}

	// 2) Store
	var store DocumentStore
	dbPath := os.Getenv("SURVEY_DB")
	if dbPath == "" {
		dbPath = "survey.db"
	}
	if dbPath == "memory" {
		store = NewMemoryStore()
		log.Printf("Using in-memory store (SURVEY_DB=memory)")
	} else {
		db, err := OpenDB(dbPath)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		if err := AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		store = NewSQLStore(db)
	}

	// 3) Engine, aggregation cache, analyzer
	sessions := NewSessionManager(store, catalog)
	cache := NewResultsCache(store, catalog)
	defer cache.Close()

	gen := NewOpenAIClient(
		os.Getenv("OPENAI_API_KEY"),
		os.Getenv("OPENAI_BASE_URL"),
		os.Getenv("OPENAI_MODEL"),
	)
	analyzer := NewAnalyzer(store, catalog, gen)
	if os.Getenv("OPENAI_API_KEY") == "" {
		log.Printf("OPENAI_API_KEY is empty; analysis calls will fail until it is set")
	}

	// 4) Router
	r := gin.Default()

	// --- CORS: allow the configured frontend origin + any localhost:port ---
	frontOrigin := os.Getenv("FRONTEND_ORIGIN")
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if frontOrigin != "" && origin == frontOrigin {
				return true
			}
			// allow any http://localhost:PORT during development
			return strings.HasPrefix(origin, "http://localhost:")
		},
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	// Optional health check
	r.GET("/healthz", func(c *gin.Context) { c.String(200, "ok") })

	// --- API routes ---
	api := r.Group("/api/v1")
	{
		// Entry / id capture
		api.POST("/join", JoinSurvey(store, catalog))
		api.GET("/questions", ListQuestions(catalog))
		api.GET("/participants/:id", GetParticipant(store))

		// One-question-per-screen survey
		api.GET("/survey/:id", SurveyState(sessions))
		api.POST("/survey/:id/select", SelectAnswer(sessions))
		api.PUT("/survey/:id/draft", UpdateDraft(sessions))
		api.POST("/survey/:id/next", NextQuestion(sessions))
		api.POST("/survey/:id/prev", PrevQuestion(sessions))
		api.POST("/survey/:id/submit", SubmitSurvey(sessions))

		// Aggregate results
		api.GET("/results", Results(cache, store))
		api.GET("/results/text/:questionId", TextResponses(cache, catalog))

		// AI analysis
		api.GET("/analysis", AnalysisStatusList(analyzer))
		api.POST("/analysis", RunAllAnalyses(analyzer))
		api.POST("/analysis/:questionId", RunQuestionAnalysis(analyzer))
		api.GET("/analysis/:questionId", GetQuestionAnalysis(store, catalog, cache))
		api.POST("/comprehensive", RunComprehensiveAnalysis(analyzer))
		api.GET("/comprehensive", GetComprehensiveAnalysis(store, catalog))
	}

	// Unknown routes resolve to the entry payload; unknown API routes 404.
	entry := EntryInfo(catalog)
	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(404, gin.H{"error": "not found"})
			return
		}
		entry(c)
	})

	// --- Server ---
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("run: %v", err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
