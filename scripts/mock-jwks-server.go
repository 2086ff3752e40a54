//go:build ignore

// mock-jwks-server.go - JWKS + token endpoint for local testing
//
// Usage:
//   go run scripts/mock-jwks-server.go
//
// Serves a freshly generated RSA key as a JWKS document and mints RS256
// JWTs signed with it, so the admin-API auth middleware can be exercised
// locally. Point the server at it with:
//
//   jwks:
//     url: http://localhost:8088/.well-known/jwks.json
//     issuer: http://localhost:8088

package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	port   = 8088
	keyID  = "local-dev-key"
	issuer = "http://localhost:8088"
)

var signingKey *rsa.PrivateKey

func main() {
	var err error
	signingKey, err = rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatalf("failed to generate signing key: %v", err)
	}

	http.HandleFunc("/.well-known/jwks.json", handleJWKS)
	http.HandleFunc("/token", handleToken)
	http.HandleFunc("/health", handleHealth)

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Mock JWKS server starting on http://localhost%s", addr)
	log.Printf("GET  /.well-known/jwks.json - JWKS document")
	log.Printf("POST /token                 - Mints an RS256 JWT")
	log.Fatal(http.ListenAndServe(addr, nil))
}

func handleJWKS(w http.ResponseWriter, r *http.Request) {
	pub := signingKey.Public().(*rsa.PublicKey)
	jwks := map[string]interface{}{
		"keys": []map[string]string{{
			"kid": keyID,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jwks)
}

func handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuer,
		"sub": "local-admin",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	token.Header["kid"] = keyID

	signed, err := token.SignedString(signingKey)
	if err != nil {
		http.Error(w, "failed to sign token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}
