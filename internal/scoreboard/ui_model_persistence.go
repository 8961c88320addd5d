package scoreboard

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

type uiModelPersistenceData struct {
	PlayerNames []string `json:"player_names"`
	VO2maxMode  string   `json:"vo2max_mode,omitempty"`
}

type uiModelPersistence struct {
	filePath string
	mu       sync.Mutex
	data     uiModelPersistenceData
	logger   *log.Logger
}

// DefaultStateFile is ~/.shuttle-run/ui_state.json.
func DefaultStateFile() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".shuttle-run", "ui_state.json")
}

func newUIModelPersistence(filePath string, logger *log.Logger) *uiModelPersistence {
	if filePath == "" {
		filePath = DefaultStateFile()
	}
	p := &uiModelPersistence{
		filePath: filePath,
		logger:   logger,
	}
	p.load()
	return p
}

func (p *uiModelPersistence) getPlayerNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.data.PlayerNames)
}

func (p *uiModelPersistence) setPlayerNames(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if slices.Equal(p.data.PlayerNames, names) {
		return
	}
	p.data.PlayerNames = slices.Clone(names)
	p.save()
}

func (p *uiModelPersistence) getVO2maxMode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.VO2maxMode
}

func (p *uiModelPersistence) setVO2maxMode(mode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data.VO2maxMode == mode {
		return
	}
	p.data.VO2maxMode = mode
	p.save()
}

func (p *uiModelPersistence) load() {
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		p.logger.Printf("UIModelPersistence: load %s (no existing file)", p.filePath)
		return
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.logger.Printf("UIModelPersistence: load %s failed to parse: %v", p.filePath, err)
		p.data = uiModelPersistenceData{}
		return
	}
	p.logger.Printf("UIModelPersistence: load %s -> %d player names", p.filePath, len(p.data.PlayerNames))
}

// save must be called with mu held
func (p *uiModelPersistence) save() {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		p.logger.Printf("UIModelPersistence: save mkdir failed: %v", err)
		return
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		p.logger.Printf("UIModelPersistence: save marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(p.filePath, raw, 0644); err != nil {
		p.logger.Printf("UIModelPersistence: save %s failed: %v", p.filePath, err)
		return
	}
	p.logger.Printf("UIModelPersistence: save %s", p.filePath)
}

// LoadPlayerNames reads the names remembered from the last session, for use
// before the model exists.
func LoadPlayerNames(filePath string, logger *log.Logger) []string {
	return newUIModelPersistence(filePath, logger).getPlayerNames()
}
