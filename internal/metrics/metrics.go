// Package metrics holds the Prometheus collectors for prompt building and
// music generation. They register with the default registry and are served
// at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TemplateLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbook_template_loads_total",
		Help: "Template lookups by outcome (hit, parsed, not_found).",
	}, []string{"outcome"})

	TemplateCacheClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songbook_template_cache_clears_total",
		Help: "Times the template cache was cleared.",
	})

	PromptLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "songbook_prompt_length_chars",
		Help:    "Length in characters of final rendered prompts.",
		Buckets: []float64{250, 500, 750, 1000, 1250, 1500, 1750, 2000, 2500, 4000},
	})

	TruncationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbook_lyrics_truncations_total",
		Help: "Lyrics truncations by tier (paragraph, sentence, hard_cut).",
	}, []string{"tier"})

	PromptsTooLongTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songbook_prompts_too_long_total",
		Help: "Prompts still over the limit after truncation.",
	})

	FallbackBuildsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "songbook_fallback_builds_total",
		Help: "Prompts built from the hardcoded default template.",
	})

	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbook_generations_total",
		Help: "Music generation requests by result (success or error category).",
	}, []string{"result"})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "songbook_generation_duration_seconds",
		Help:    "Wall time of music generation calls including retries.",
		Buckets: []float64{1, 5, 10, 20, 30, 60, 90, 120, 240, 360},
	})

	ProviderRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "songbook_provider_retries_total",
		Help: "Retried provider calls by provider.",
	}, []string{"provider"})
)
