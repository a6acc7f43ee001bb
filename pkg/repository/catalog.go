package repository

import (
	"fmt"
	"sort"
	"sync"
)

// Provider, bir entity tipi için descriptor üretir. Catalog her provider'ı
// en fazla bir kez çağırır.
type Provider func() (*Metadata, error)

type catalogEntry struct {
	once     sync.Once
	provider Provider
	meta     *Metadata
	err      error
}

// Catalog, entity descriptor'larını isimle tutar ve her birini process
// ömrü boyunca bir kez çözer.
//
// Örnek:
//
//	catalog := repository.NewCatalog()
//	catalog.Register("post", func() (*repository.Metadata, error) {
//	    return postMetadata, nil
//	})
//	meta, err := catalog.Resolve("post")
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]*catalogEntry
}

// NewCatalog, boş bir Catalog oluşturur.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]*catalogEntry)}
}

// Register, bir entity adı için provider kaydeder. Aynı isim ikinci kez
// kaydedilirse hata döner.
func (c *Catalog) Register(name string, provider Provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[name]; exists {
		return fmt.Errorf("repository: entity %q is already registered", name)
	}
	c.entries[name] = &catalogEntry{provider: provider}
	return nil
}

// MustRegister, Register gibidir ama hatada panic yapar. Sadece init
// aşamasında kullanılmalıdır.
func (c *Catalog) MustRegister(name string, provider Provider) {
	if err := c.Register(name, provider); err != nil {
		panic(err)
	}
}

// Resolve, descriptor'ı döndürür. İlk çağrıda provider çalışır ve sonuç
// (hata dahil) cache'lenir.
func (c *Catalog) Resolve(name string) (*Metadata, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("repository: entity %q is not registered", name)
	}

	entry.once.Do(func() {
		meta, err := entry.provider()
		switch {
		case err != nil:
		case meta == nil:
			err = fmt.Errorf("repository: provider for %q returned no metadata", name)
		default:
			err = meta.Validate()
		}
		entry.meta, entry.err = meta, err
	})
	return entry.meta, entry.err
}

// Names, kayıtlı entity adlarını sıralı döndürür.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
