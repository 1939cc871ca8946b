package credential

import (
	"strings"
	"sync"
)

// Credential непрозрачный секрет одного аккаунта upstream API.
type Credential string

// Pool хранит упорядоченный набор ключей и признак перегрузки для каждого.
// Состояние общее для всех запросов процесса; создаётся один раз и передаётся явно.
type Pool struct {
	mu         sync.Mutex
	ordered    []Credential
	index      map[Credential]int
	overloaded map[Credential]struct{}
	cursor     int
	onChange   func(overloaded int)
}

// Option настраивает Pool.
type Option func(*Pool)

// WithOverloadObserver вызывается после каждого изменения множества перегруженных ключей.
func WithOverloadObserver(fn func(overloaded int)) Option {
	return func(p *Pool) { p.onChange = fn }
}

// NewPool создаёт пул; пустые и повторяющиеся ключи отбрасываются, порядок сохраняется.
func NewPool(creds []Credential, opts ...Option) *Pool {
	p := &Pool{
		ordered:    make([]Credential, 0, len(creds)),
		index:      make(map[Credential]int, len(creds)),
		overloaded: make(map[Credential]struct{}),
	}
	for _, c := range creds {
		c = Credential(strings.TrimSpace(string(c)))
		if c == "" {
			continue
		}
		if _, dup := p.index[c]; dup {
			continue
		}
		p.index[c] = len(p.ordered)
		p.ordered = append(p.ordered, c)
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromStrings удобная обёртка для значений из конфигурации.
func FromStrings(keys []string, opts ...Option) *Pool {
	creds := make([]Credential, 0, len(keys))
	for _, k := range keys {
		creds = append(creds, Credential(k))
	}
	return NewPool(creds, opts...)
}

func (p *Pool) Size() int {
	return len(p.ordered)
}

// NextAvailable возвращает первый неперегруженный ключ, начиная с курсора.
// Если перегружены все, множество очищается и возвращается ключ с индексом 0.
// false только для пустого пула.
func (p *Pool) NextAvailable() (Credential, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.ordered)
	if n == 0 {
		return "", false
	}
	for i := 0; i < n; i++ {
		c := p.ordered[(p.cursor+i)%n]
		if _, bad := p.overloaded[c]; !bad {
			return c, true
		}
	}

	// Все ключи помечены: считаем сигналы устаревшими.
	p.overloaded = make(map[Credential]struct{})
	p.notifyLocked()
	return p.ordered[0], true
}

// MarkOverloaded помечает ключ и сдвигает курсор за него.
// Ключи не из пула игнорируются.
func (p *Pool) MarkOverloaded(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[c]
	if !ok {
		return
	}
	p.overloaded[c] = struct{}{}
	p.cursor = (idx + 1) % len(p.ordered)
	p.notifyLocked()
}

// MarkHealthy снимает пометку перегрузки после успешного ответа.
func (p *Pool) MarkHealthy(c Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.overloaded[c]; !ok {
		return
	}
	delete(p.overloaded, c)
	p.notifyLocked()
}

func (p *Pool) IsOverloaded(c Credential) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.overloaded[c]
	return ok
}

// IndexOf возвращает позицию ключа; используется для логов вместо самого секрета.
func (p *Pool) IndexOf(c Credential) int {
	idx, ok := p.index[c]
	if !ok {
		return -1
	}
	return idx
}

// Snapshot состояние пула без секретов.
type Snapshot struct {
	Size       int   `json:"size"`
	Cursor     int   `json:"cursor"`
	Overloaded []int `json:"overloaded"`
}

func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{Size: len(p.ordered), Cursor: p.cursor, Overloaded: []int{}}
	for i, c := range p.ordered {
		if _, ok := p.overloaded[c]; ok {
			s.Overloaded = append(s.Overloaded, i)
		}
	}
	return s
}

func (p *Pool) notifyLocked() {
	if p.onChange != nil {
		p.onChange(len(p.overloaded))
	}
}
