package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"servewell_backend/internal/reviews/domain"
	"servewell_backend/platform/phone"

	"gopkg.in/yaml.v3"
)

type fixtureFile struct {
	Companies []companyFixture `yaml:"companies"`
}

type companyFixture struct {
	Name         string         `yaml:"name"`
	PhoneNumber  string         `yaml:"phoneNumber"`
	InstanceID   string         `yaml:"instanceId"`
	APIToken     string         `yaml:"apiToken"`
	WebhookToken string         `yaml:"webhookToken"`
	Orders       []orderFixture `yaml:"orders"`
}

type orderFixture struct {
	Number        string            `yaml:"number"`
	BranchName    string            `yaml:"branchName"`
	PlacedAt      time.Time         `yaml:"placedAt"`
	CustomerName  string            `yaml:"customerName"`
	CustomerPhone string            `yaml:"customerPhone"`
	Details       string            `yaml:"details"`
	LineItems     []lineItemFixture `yaml:"lineItems"`
}

type lineItemFixture struct {
	Item         string  `yaml:"item"`
	Quantity     int     `yaml:"quantity"`
	Price        float64 `yaml:"price"`
	SpecialNotes string  `yaml:"specialNotes"`
}

func loadFixtures(path string) (fixtureFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fixtureFile{}, err
	}
	var f fixtureFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fixtureFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, f.validate()
}

func (f fixtureFile) validate() error {
	seen := make(map[string]bool)
	for i, c := range f.Companies {
		if strings.TrimSpace(c.InstanceID) == "" || strings.TrimSpace(c.APIToken) == "" {
			return fmt.Errorf("company %d: instanceId and apiToken are required", i)
		}
		if seen[c.InstanceID] {
			return fmt.Errorf("company %d: duplicate instanceId %s", i, c.InstanceID)
		}
		seen[c.InstanceID] = true
		for j, o := range c.Orders {
			if strings.TrimSpace(o.Number) == "" || o.PlacedAt.IsZero() {
				return fmt.Errorf("company %s order %d: number and placedAt are required", c.InstanceID, j)
			}
		}
	}
	return nil
}

// toOrder builds the domain order; the customer phone is normalized to E.164.
func (o orderFixture) toOrder(region string) domain.Order {
	items := make([]domain.LineItem, 0, len(o.LineItems))
	for _, it := range o.LineItems {
		items = append(items, domain.LineItem{
			Item:         it.Item,
			Quantity:     it.Quantity,
			Price:        it.Price,
			SpecialNotes: it.SpecialNotes,
		})
	}
	return domain.Order{
		Number:        strings.TrimSpace(o.Number),
		BranchName:    o.BranchName,
		PlacedAt:      o.PlacedAt.UTC(),
		CustomerName:  o.CustomerName,
		CustomerPhone: phone.NormalizeE164(o.CustomerPhone, region),
		Details:       o.Details,
		LineItems:     items,
	}
}
