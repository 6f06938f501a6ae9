package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/simwire/server/internal/component"
)

// MobTemplate describes how a kind of mob looks and behaves.
type MobTemplate struct {
	Name   string     `yaml:"name"`
	Color  [4]float32 `yaml:"color"`
	Size   float64    `yaml:"size"`
	Wander bool       `yaml:"wander"`
}

// SpawnEntry defines where and how many mobs to spawn.
type SpawnEntry struct {
	Mob     string  `yaml:"mob"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Count   int     `yaml:"count"`
	RandomX float64 `yaml:"random_x"` // spread around X, in world units
	RandomY float64 `yaml:"random_y"`
	Dir     string  `yaml:"dir"` // initial heading, default Up
}

type spawnListFile struct {
	Mobs   []MobTemplate `yaml:"mobs"`
	Spawns []SpawnEntry  `yaml:"spawns"`
}

// SpawnList holds mob templates by name and the spawn entries in file order.
type SpawnList struct {
	templates map[string]*MobTemplate
	Spawns    []SpawnEntry
}

// LoadSpawnList loads a spawn list YAML file.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn_list: %w", err)
	}
	return ParseSpawnList(raw)
}

// ParseSpawnList decodes and validates a spawn list.
func ParseSpawnList(raw []byte) (*SpawnList, error) {
	var f spawnListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawn_list: %w", err)
	}
	l := &SpawnList{
		templates: make(map[string]*MobTemplate, len(f.Mobs)),
		Spawns:    f.Spawns,
	}
	for i := range f.Mobs {
		m := &f.Mobs[i]
		if _, dup := l.templates[m.Name]; dup {
			return nil, fmt.Errorf("spawn_list: mob %q defined twice", m.Name)
		}
		l.templates[m.Name] = m
	}
	for i := range l.Spawns {
		s := &l.Spawns[i]
		if _, ok := l.templates[s.Mob]; !ok {
			return nil, fmt.Errorf("spawn_list: spawn %d: unknown mob %q", i, s.Mob)
		}
		if s.Count < 1 {
			s.Count = 1
		}
		if s.Dir == "" {
			s.Dir = component.DirUp.String()
		}
		if _, ok := component.ParseDir(s.Dir); !ok {
			return nil, fmt.Errorf("spawn_list: spawn %d: unknown dir %q", i, s.Dir)
		}
	}
	return l, nil
}

// Template returns the mob template by name, or nil if none.
func (l *SpawnList) Template(name string) *MobTemplate {
	return l.templates[name]
}

// Count returns the total number of mobs the list spawns.
func (l *SpawnList) Count() int {
	n := 0
	for _, s := range l.Spawns {
		n += s.Count
	}
	return n
}
