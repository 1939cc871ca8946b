package prompts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("prompt not found")

// Persona системный промпт и оформление персоны для UI.
type Persona struct {
	Name        string `json:"name" yaml:"name"`
	Role        string `json:"role,omitempty" yaml:"role"`
	Description string `json:"description,omitempty" yaml:"description"`
	Content     string `json:"content" yaml:"content"`
	Avatar      string `json:"avatar,omitempty" yaml:"avatar"`
	Color       string `json:"color,omitempty" yaml:"color"`
	// Voice голос заготовленного ответа (hinglish/english); пусто = по маркеру.
	Voice string `json:"voice,omitempty" yaml:"voice"`
}

// Catalog неизменяемый набор персон, загружается один раз при старте.
type Catalog struct {
	personas []Persona
	byName   map[string]int
}

// Load читает каталог из .json или .yaml/.yml файла.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=prompts.load: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse разбирает содержимое каталога; ext определяет формат.
func Parse(data []byte, ext string) (*Catalog, error) {
	var personas []Persona
	switch strings.ToLower(ext) {
	case ".json", "":
		if err := json.Unmarshal(data, &personas); err != nil {
			return nil, fmt.Errorf("op=prompts.parse json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &personas); err != nil {
			return nil, fmt.Errorf("op=prompts.parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("op=prompts.parse: unsupported format %q", ext)
	}
	return New(personas)
}

// New проверяет персоны: имя и промпт обязательны, имена уникальны.
func New(personas []Persona) (*Catalog, error) {
	c := &Catalog{
		personas: make([]Persona, 0, len(personas)),
		byName:   make(map[string]int, len(personas)),
	}
	for i, p := range personas {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("op=prompts.new: persona #%d has no name", i)
		}
		if strings.TrimSpace(p.Content) == "" {
			return nil, fmt.Errorf("op=prompts.new: persona %q has no content", p.Name)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("op=prompts.new: duplicate persona %q", p.Name)
		}
		c.byName[p.Name] = len(c.personas)
		c.personas = append(c.personas, p)
	}
	return c, nil
}

// Lookup ищет персону по точному имени.
func (c *Catalog) Lookup(name string) (Persona, error) {
	if c == nil {
		return Persona{}, ErrNotFound
	}
	idx, ok := c.byName[name]
	if !ok {
		return Persona{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c.personas[idx], nil
}

// List возвращает персоны в порядке файла.
func (c *Catalog) List() []Persona {
	if c == nil {
		return []Persona{}
	}
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// Voices имена персон с явно заданным голосом.
func (c *Catalog) Voices() map[string]string {
	out := make(map[string]string)
	if c == nil {
		return out
	}
	for _, p := range c.personas {
		if v := strings.TrimSpace(p.Voice); v != "" {
			out[p.Name] = strings.ToLower(v)
		}
	}
	return out
}
