package database

import (
	"fmt"
	"strconv"
	"time"
)

// ToDebugSQL, bağlı değerleri placeholder'ların yerine yazar. Sadece
// inceleme (log, CLI preview) içindir; çıktısı asla çalıştırılmamalıdır.
//
// Sayılar tırnaksız, NULL olduğu gibi, diğer her şey tırnaklanıp escape
// edilerek yazılır.
//
// Örnek:
//
//	qb.From("users").Where("name", "=", "O'Brien").Where("age", ">", 30)
//	qb.ToDebugSQL() // SELECT * FROM users WHERE name = 'O''Brien' AND age > 30
func (qb *QueryBuilder) ToDebugSQL() (string, error) {
	sql, params, err := qb.ToSQL()
	if err != nil {
		return "", err
	}
	return Interpolate(sql, params), nil
}

// Interpolate, :pN placeholder'larını değerlerin literal gösterimiyle değiştirir.
// Bağlanmamış placeholder'lar olduğu gibi kalır.
func Interpolate(sql string, params map[string]any) string {
	return walkPlaceholders(sql, func(name string) string {
		value, ok := params[name]
		if !ok {
			return name
		}
		return debugLiteral(value)
	})
}

func debugLiteral(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05") + "'"
	case []byte:
		return "'" + escapeString(string(v)) + "'"
	default:
		return "'" + escapeString(fmt.Sprint(v)) + "'"
	}
}
