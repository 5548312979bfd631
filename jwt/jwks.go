package jwtkit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// PublicKeyJWK renders the public half of one pool key as a JWK
// (kty OKP, crv Ed25519). Returns false when kid is unknown or already
// outside its verification window.
func (m *KeyManager) PublicKeyJWK(kid string) (jwk.Key, bool, error) {
	pub, ok := m.KeyFor(kid)
	if !ok {
		return nil, false, nil
	}
	key, err := jwk.FromRaw(pub)
	if err != nil {
		return nil, false, fmt.Errorf("build jwk for %s: %w", kid, err)
	}
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, false, err
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return nil, false, err
	}
	if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, false, err
	}
	return key, true, nil
}

// JWKS returns the set of all currently verifiable public keys, in a stable
// kid order so the serialized document (and its ETag) is deterministic.
func (m *KeyManager) JWKS() (jwk.Set, error) {
	kids := m.VerifiableKIDs()
	sort.Strings(kids)

	set := jwk.NewSet()
	for _, kid := range kids {
		key, ok, err := m.PublicKeyJWK(kid)
		if err != nil {
			return nil, err
		}
		if !ok {
			// Evicted between listing and rendering; fine to skip.
			continue
		}
		if err := set.AddKey(key); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// ServeJWKS writes a JWK set with cache headers and conditional-GET support.
func ServeJWKS(w http.ResponseWriter, r *http.Request, set jwk.Set) {
	// Marshal first to compute a stable ETag and set cache headers.
	b, err := json.Marshal(set)
	if err != nil {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	sum := sha256.Sum256(b)
	etag := "\"" + hex.EncodeToString(sum[:]) + "\""

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300, must-revalidate")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(b)
}
