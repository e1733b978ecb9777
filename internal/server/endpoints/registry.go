package endpoints

import (
	"github.com/jackzampolin/songbook/internal/api"
)

// All returns all endpoint instances.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},
		&MetricsEndpoint{},

		// Prompt endpoints
		&ListPromptsEndpoint{},
		&GetPromptEndpoint{},
		&RenderPromptEndpoint{},
		&CheckPromptEndpoint{},
		&ClearPromptCacheEndpoint{},

		// Music endpoints
		&MusicConfigEndpoint{},
		&GenerateEndpoint{},

		// Song endpoints
		&ListSongsEndpoint{},
		&GetSongEndpoint{},
		&SongAudioEndpoint{},

		// Bible endpoints
		&DetectBibleEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
	}
}
