package logger

import (
	"net/url"
	"strings"
)

const (
	// DefaultMaskValue replaces sensitive values in log output
	DefaultMaskValue = "***"
	// DefaultMaxDepth bounds recursion into nested field maps
	DefaultMaxDepth = 8
)

// FilterConfig defines which field names are considered sensitive and what
// masked values are replaced with.
type FilterConfig struct {
	// SensitiveFields are matched as case-insensitive substrings of field names
	SensitiveFields []string
	// MaskValue replaces sensitive data (default "***")
	MaskValue string
}

// DefaultFilterConfig returns a configuration covering the credential-bearing
// field and header names an HTTP client is likely to log.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "pwd",
			"secret", "api_key", "apikey",
			"token", "access_token", "refresh_token",
			"auth", "authorization", "proxy-authorization",
			"cookie", "set-cookie",
			"credential", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive values before they reach the log sink.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a filter with the given configuration.
// A nil config uses DefaultFilterConfig.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString masks the value when the key names a sensitive field.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) {
		return f.maskString(value)
	}
	return value
}

// FilterValue masks sensitive entries in the value, recursing into maps and
// slices up to DefaultMaxDepth.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	return f.filterValue(key, value, DefaultMaxDepth)
}

// FilterFields returns a copy of fields with sensitive entries masked.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) filterValue(key string, value any, depth int) any {
	if f.isSensitiveField(key) {
		if s, ok := value.(string); ok {
			return f.maskString(s)
		}
		return f.config.MaskValue
	}
	if value == nil || depth <= 0 {
		return value
	}

	switch v := value.(type) {
	case map[string]any:
		filtered := make(map[string]any, len(v))
		for k, e := range v {
			filtered[k] = f.filterValue(k, e, depth-1)
		}
		return filtered
	case map[string]string:
		filtered := make(map[string]string, len(v))
		for k, e := range v {
			filtered[k] = f.FilterString(k, e)
		}
		return filtered
	case map[string][]string:
		// Header-shaped maps: mask every value under a sensitive name
		filtered := make(map[string][]string, len(v))
		for k, es := range v {
			if f.isSensitiveField(k) {
				masked := make([]string, len(es))
				for i := range es {
					masked[i] = f.config.MaskValue
				}
				filtered[k] = masked
				continue
			}
			filtered[k] = es
		}
		return filtered
	case []any:
		filtered := make([]any, len(v))
		for i, e := range v {
			filtered[i] = f.filterValue(key, e, depth-1)
		}
		return filtered
	default:
		return value
	}
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lowerFieldName := strings.ToLower(fieldName)
	for _, sensitiveField := range f.config.SensitiveFields {
		if strings.Contains(lowerFieldName, strings.ToLower(sensitiveField)) {
			return true
		}
	}
	return false
}

// maskString masks a sensitive value. URLs keep their structure with only
// the userinfo password replaced; everything else is fully masked.
func (f *SensitiveDataFilter) maskString(value string) string {
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return f.maskURL(value)
	}
	return f.config.MaskValue
}

func (f *SensitiveDataFilter) maskURL(urlStr string) string {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User != nil {
		if _, hasPassword := parsed.User.Password(); hasPassword {
			return f.buildMaskedURL(parsed, parsed.User.Username())
		}
	}
	return urlStr
}

func (f *SensitiveDataFilter) buildMaskedURL(parsed *url.URL, username string) string {
	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(username)
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(parsed.Host)
	if p := parsed.EscapedPath(); p != "" {
		b.WriteString(p)
	}
	if q := parsed.RawQuery; q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	if frag := parsed.Fragment; frag != "" {
		b.WriteByte('#')
		b.WriteString(frag)
	}
	return b.String()
}
