// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chatgate Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/chatgate/chatgate/internal/auth"
)

type authorizeBody struct {
	Status      string `json:"status"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

func post(path, email, password string) (int, []byte) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	Expect(err).NotTo(HaveOccurred())

	resp, err := http.Post(env.server.URL+path, "application/json", bytes.NewReader(payload))
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, body
}

func check(token string) (int, string) {
	req, err := http.NewRequestWithContext(env.ctx, http.MethodGet, env.server.URL+"/check", nil)
	Expect(err).NotTo(HaveOccurred())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp.StatusCode, string(body)
}

func errorMessage(body []byte) string {
	var out map[string]string
	Expect(json.Unmarshal(body, &out)).To(Succeed())
	return out["error"]
}

var _ = Describe("Credential lifecycle", func() {
	BeforeEach(func() {
		truncateCredentials()
	})

	It("registers, logs in and reaches the protected route", func() {
		status, body := post("/register", "alice@example.com", "hunter2")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(MatchJSON(`{"message":"User registered successfully"}`))

		status, body = post("/authorize", "alice@example.com", "wrong")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(errorMessage(body)).To(Equal("Wrong credentials"))

		status, body = post("/authorize", "alice@example.com", "hunter2")
		Expect(status).To(Equal(http.StatusOK))
		var issued authorizeBody
		Expect(json.Unmarshal(body, &issued)).To(Succeed())
		Expect(issued.Status).To(Equal("success"))
		Expect(issued.TokenType).To(Equal("Bearer"))
		Expect(issued.AccessToken).NotTo(BeEmpty())

		status, text := check(issued.AccessToken)
		Expect(status).To(Equal(http.StatusOK))
		Expect(text).To(Equal("Welcome to the protected area :)\nYour data:\nEmail: alice@example.com"))

		status, text = check("")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(errorMessage([]byte(text))).To(Equal("Invalid token"))
	})

	It("treats an unknown identity like a wrong password", func() {
		status, body := post("/authorize", "ghost@example.com", "hunter2")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(errorMessage(body)).To(Equal("Wrong credentials"))
	})

	It("keeps the first password when a duplicate registration is rejected", func() {
		status, _ := post("/register", "bob@example.com", "first")
		Expect(status).To(Equal(http.StatusOK))

		before, err := env.repo.Lookup(env.ctx, "bob@example.com")
		Expect(err).NotTo(HaveOccurred())

		status, body := post("/register", "bob@example.com", "second")
		Expect(status).To(Equal(http.StatusConflict))
		Expect(errorMessage(body)).To(Equal("User already exists"))

		after, err := env.repo.Lookup(env.ctx, "bob@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(after.PasswordHash).To(Equal(before.PasswordHash))

		status, _ = post("/authorize", "bob@example.com", "first")
		Expect(status).To(Equal(http.StatusOK))
		status, _ = post("/authorize", "bob@example.com", "second")
		Expect(status).To(Equal(http.StatusUnauthorized))
	})

	It("stores only a PHC encoded hash", func() {
		status, _ := post("/register", "carol@example.com", "plaintext-secret")
		Expect(status).To(Equal(http.StatusOK))

		cred, err := env.repo.Lookup(env.ctx, "carol@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(cred.PasswordHash).To(HavePrefix("$argon2id$v=19$"))
		Expect(cred.PasswordHash).NotTo(ContainSubstring("plaintext-secret"))
	})
})

var _ = Describe("Concurrent registration", func() {
	BeforeEach(func() {
		truncateCredentials()
	})

	It("lets exactly one request win for the same identity", func() {
		const attempts = 10
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			statuses = map[int]int{}
		)
		start := make(chan struct{})
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				status, _ := post("/register", "race@example.com", fmt.Sprintf("pw-%d", i))
				mu.Lock()
				statuses[status]++
				mu.Unlock()
			}(i)
		}
		close(start)
		wg.Wait()

		Expect(statuses).To(HaveLen(2))
		Expect(statuses[http.StatusOK]).To(Equal(1))
		Expect(statuses[http.StatusConflict]).To(Equal(attempts - 1))
	})

	It("reports the unique constraint as a conflict without the precheck", func() {
		cred, err := auth.NewCredential("dave@example.com", "$argon2id$v=19$m=64,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNoaGFzaA")
		Expect(err).NotTo(HaveOccurred())
		Expect(env.repo.Insert(env.ctx, cred)).To(Succeed())

		dup, err := auth.NewCredential("dave@example.com", "$argon2id$v=19$m=64,t=1,p=1$b3RoZXI$b3RoZXJoYXNoaGFzaGhhc2g")
		Expect(err).NotTo(HaveOccurred())
		err = env.repo.Insert(env.ctx, dup)
		Expect(auth.KindOf(err)).To(Equal(auth.KindUserAlreadyExists))
	})
})
