package database

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Reflection-Based Struct Scanner
// -----------------------------------------------------------------------------
// Get/First sonuçlarını struct'lara tarar. Kolon → alan eşlemesi:
//   - `db:"kolon"` tag'i varsa o
//   - `db:"-"` alanı atlar
//   - tag yoksa alan adının snake_case hali (CreatedAt → created_at)
//
// Tip başına eşleme cache'lenir; kullanılmayan entry'ler arka plandaki
// cleanup döngüsüyle temizlenir. Döngü Stop ile durdurulur.
// -----------------------------------------------------------------------------

type scannerCacheEntry struct {
	fieldMap   fieldMap
	lastAccess time.Time
}

// fieldMap, kolon adı → alan index yolu.
type fieldMap map[string][]int

// Scanner, cache yönetimi ve cleanup lifecycle'ını kontrol eder.
type Scanner struct {
	cache      map[reflect.Type]*scannerCacheEntry
	mu         sync.Mutex
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	cleanupInt time.Duration
	maxAge     time.Duration
}

var (
	globalScanner *Scanner
	scannerOnce   sync.Once
)

// InitScanner, global scanner instance'ını başlatır. İlk çağrı kazanır.
func InitScanner(cleanupInterval, maxAge time.Duration) *Scanner {
	scannerOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		globalScanner = &Scanner{
			cache:      make(map[reflect.Type]*scannerCacheEntry),
			ctx:        ctx,
			cancel:     cancel,
			cleanupInt: cleanupInterval,
			maxAge:     maxAge,
		}
		globalScanner.wg.Add(1)
		go globalScanner.cleanupLoop()
	})
	return globalScanner
}

// GetScanner, global scanner'ı döndürür; başlatılmamışsa varsayılanlarla başlatır.
func GetScanner() *Scanner {
	return InitScanner(10*time.Minute, 30*time.Minute)
}

func (s *Scanner) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scanner) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for typ, entry := range s.cache {
		if now.Sub(entry.lastAccess) > s.maxAge {
			delete(s.cache, typ)
		}
	}
}

// Stop, cleanup döngüsünü durdurur ve bitmesini bekler.
func (s *Scanner) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scanner) fieldsOf(structType reflect.Type) fieldMap {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.cache[structType]; ok {
		entry.lastAccess = time.Now()
		return entry.fieldMap
	}
	mapping := make(fieldMap)
	collectFields(structType, nil, mapping)
	s.cache[structType] = &scannerCacheEntry{fieldMap: mapping, lastAccess: time.Now()}
	return mapping
}

// collectFields, embedded struct'lara inerek kolon → index yolu eşlemesi kurar.
// Dıştaki alanlar embedded alanları gölgeler.
func collectFields(t reflect.Type, prefix []int, mapping fieldMap) {
	var embedded []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Tag.Get("db") == "" {
			embedded = append(embedded, field)
			continue
		}
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			tag = name
		} else {
			tag = camelToSnake(field.Name)
		}
		mapping[tag] = append(append([]int(nil), prefix...), i)
	}
	for _, field := range embedded {
		nested := make(fieldMap)
		collectFields(field.Type, append(append([]int(nil), prefix...), field.Index...), nested)
		for col, path := range nested {
			if _, taken := mapping[col]; !taken {
				mapping[col] = path
			}
		}
	}
}

// ScanStruct, *sql.Rows'un mevcut satırını bir struct'a tarar.
// Struct'ta karşılığı olmayan kolonlar atlanır.
func ScanStruct(rows *sql.Rows, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest bir struct pointer olmalıdır, %T alındı", dest)
	}
	destElem := destValue.Elem()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}
	fields := GetScanner().fieldsOf(destElem.Type())

	scanArgs := make([]any, len(cols))
	for i, col := range cols {
		path, ok := fields[col]
		if !ok {
			scanArgs[i] = new(any)
			continue
		}
		fieldVal := destElem.FieldByIndex(path)
		if !fieldVal.CanSet() {
			return fmt.Errorf("scanner: '%s' alanı ayarlanamıyor", col)
		}
		scanArgs[i] = fieldVal.Addr().Interface()
	}
	return rows.Scan(scanArgs...)
}

// ScanSlice, tüm sonuç kümesini bir struct slice'ına tarar.
// Slice elemanları struct veya struct pointer olabilir.
func ScanSlice(rows *sql.Rows, dest any) error {
	sliceValue := reflect.ValueOf(dest)
	if sliceValue.Kind() != reflect.Ptr || sliceValue.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("scanner: dest bir slice pointer olmalıdır, %T alındı", dest)
	}
	sliceElem := sliceValue.Elem()
	elemType := sliceElem.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	for rows.Next() {
		item := reflect.New(elemType)
		if err := ScanStruct(rows, item.Interface()); err != nil {
			return err
		}
		if isPtr {
			sliceElem.Set(reflect.Append(sliceElem, item))
		} else {
			sliceElem.Set(reflect.Append(sliceElem, item.Elem()))
		}
	}
	return rows.Err()
}
