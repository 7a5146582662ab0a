package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DanialBetres/stepful-scheduling/internal/models"
	"github.com/DanialBetres/stepful-scheduling/internal/service"
)

type outcome struct {
	StudentID string
	Status    int
	Code      string
	Duration  time.Duration
}

func main() {
	var (
		base     string
		coachID  string
		date     string
		start    string
		students string
		secret   string
		issuer   string
		timeout  time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL")
	flag.StringVar(&coachID, "coach", "coach-1", "Coach who opens the slot")
	flag.StringVar(&date, "date", time.Now().AddDate(0, 0, 1).Format(models.DateLayout), "Slot date")
	flag.StringVar(&start, "start", "14:00", "Slot start time")
	flag.StringVar(&students, "students", "student-1,student-2,student-3,student-4", "Comma separated students racing for the slot")
	flag.StringVar(&secret, "secret", os.Getenv("AUTH_JWT_SECRET"), "Token secret; empty sends no tokens")
	flag.StringVar(&issuer, "issuer", os.Getenv("AUTH_JWT_ISSUER"), "Token issuer")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	racers := splitList(students)
	if len(racers) < 2 {
		log.Fatal("need at least two students to race")
	}

	client := &http.Client{Timeout: timeout}
	tokens := newTokenSource(service.NewTokenVerifier(secret, issuer))
	base = strings.TrimRight(base, "/")

	status, code, err := post(client, base+"/coaches/"+coachID+"/availability", tokens.For(coachID, models.RoleCoach),
		map[string]string{"date": date, "start_time": start})
	if err != nil {
		log.Fatalf("open slot: %v", err)
	}
	if status != http.StatusOK {
		log.Fatalf("open slot: status %d (%s)", status, code)
	}

	results := make([]outcome, len(racers))
	var ready sync.WaitGroup
	ready.Add(1)
	g, _ := errgroup.WithContext(context.Background())
	for i, studentID := range racers {
		g.Go(func() error {
			ready.Wait()
			began := time.Now()
			status, code, err := post(client, base+"/bookings", tokens.For(studentID, models.RoleStudent), map[string]string{
				"coach_id":   coachID,
				"student_id": studentID,
				"date":       date,
				"start_time": start,
			})
			if err != nil {
				return fmt.Errorf("book for %s: %w", studentID, err)
			}
			results[i] = outcome{StudentID: studentID, Status: status, Code: code, Duration: time.Since(began)}
			return nil
		})
	}
	ready.Done()
	if err := g.Wait(); err != nil {
		log.Fatalf("race aborted: %v", err)
	}

	booked := 0
	for _, r := range results {
		if r.Status == http.StatusCreated {
			booked++
		}
		fmt.Printf("%-16s %d %-18s %s\n", r.StudentID, r.Status, r.Code, r.Duration)
	}
	fmt.Printf("Booked: %d of %d\n", booked, len(results))
	if booked != 1 {
		os.Exit(1)
	}
}

type tokenSource struct {
	verifier *service.TokenVerifier
}

func newTokenSource(verifier *service.TokenVerifier) tokenSource {
	return tokenSource{verifier: verifier}
}

// For returns an empty token when no secret is configured.
func (s tokenSource) For(actorID string, role models.Role) string {
	if s.verifier == nil {
		return ""
	}
	token, err := s.verifier.Issue(actorID, role, 5*time.Minute)
	if err != nil {
		log.Fatalf("issue token for %s: %v", actorID, err)
	}
	return token
}

func post(client *http.Client, url, token string, payload interface{}) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		return resp.StatusCode, envelope.Error.Code, nil
	}
	return resp.StatusCode, "", nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
