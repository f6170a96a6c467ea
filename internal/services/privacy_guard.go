package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"impact-service/internal/models"
)

// Keys are compared after lower-casing and removing separators, so
// "learner_id", "LearnerID" and "learner-id" all become "learnerid".
var (
	// exact matches only; "age" must not catch "average" or "coverage"
	privacyExactKeys = map[string]bool{
		"age":         true,
		"ageyears":    true,
		"dob":         true,
		"dateofbirth": true,
		"birthdate":   true,
		"uid":         true,
		"internalid":  true,
	}

	// matched anywhere inside the key
	privacyContainsTokens = []string{
		"childname",
		"teachername",
		"learnername",
		"studentname",
		"pupilname",
		"participantname",
		"learnerid",
		"learneruid",
		"teacherid",
		"teacheruid",
		"studentid",
		"pupilid",
		"internalid",
		"learnerage",
		"childage",
		"pupilage",
		"studentage",
	}
)

// PrivacyGuard walks any value about to leave the service and fails if a
// denylisted key appears at any depth.
type PrivacyGuard struct{}

func NewPrivacyGuard() *PrivacyGuard {
	return &PrivacyGuard{}
}

// Scan serialises v to JSON and checks every object key. It returns a
// *models.PrivacyViolationError for the first hit in key order.
func (g *PrivacyGuard) Scan(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialise payload for privacy scan: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return fmt.Errorf("failed to decode payload for privacy scan: %w", err)
	}
	return g.walk(tree, "$")
}

func (g *PrivacyGuard) walk(node any, path string) error {
	switch n := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			childPath := path + "." + k
			if IsDenylistedKey(k) {
				return &models.PrivacyViolationError{Path: childPath, Key: k}
			}
			if err := g.walk(n[k], childPath); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range n {
			if err := g.walk(item, path+"["+strconv.Itoa(i)+"]"); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsDenylistedKey reports whether a key names individual-level data.
func IsDenylistedKey(key string) bool {
	// "_id" is the classic internal identifier; once separators are removed
	// it would look like the harmless scope "id"
	if strings.TrimSpace(key) == "_id" {
		return true
	}
	k := normalizeKey(key)
	if privacyExactKeys[k] {
		return true
	}
	for _, token := range privacyContainsTokens {
		if strings.Contains(k, token) {
			return true
		}
	}
	return false
}

func normalizeKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
