package domain

import (
	"fmt"
	"strings"
)

type ProjectStatus string

const (
	ProjectPending ProjectStatus = "PENDING"
	ProjectActive  ProjectStatus = "ACTIVE"
	ProjectFrozen  ProjectStatus = "FROZEN"
)

func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch ProjectStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case ProjectPending:
		return ProjectPending, nil
	case ProjectActive:
		return ProjectActive, nil
	case ProjectFrozen:
		return ProjectFrozen, nil
	}
	return "", fmt.Errorf("unknown project status %q", s)
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ScoreRisk derives the issuance risk score from the promised ROI. Higher
// promised returns score riskier.
func ScoreRisk(roiPercent float64) (int64, RiskLevel) {
	switch {
	case roiPercent >= 13:
		return 70, RiskHigh
	case roiPercent <= 10:
		return 35, RiskLow
	default:
		return 45, RiskMedium
	}
}

// TokensFor converts an invested amount into whole tokens at the project's
// issuance price. Fractional remainders are not issued.
func TokensFor(amount, tokenPrice int64) int64 {
	if tokenPrice <= 0 {
		return 0
	}
	return amount / tokenPrice
}

// BlendedAvgPrice returns the average buy price after adding tokens bought at
// price to an existing position.
func BlendedAvgPrice(oldCount int64, oldAvg float64, addCount, price int64) float64 {
	total := oldCount + addCount
	if total <= 0 {
		return 0
	}
	return (float64(oldCount)*oldAvg + float64(addCount*price)) / float64(total)
}
