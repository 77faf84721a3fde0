// Standalone fairness analysis for the color wheel.
// Draws outcomes with the same drawer settlement uses and runs every
// simulated round through the settlement planner.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"coino/models"
	"coino/service"
)

// chi-squared critical value for 5 degrees of freedom at 95% confidence
const chiSquaredCritical = 11.07

func main() {
	rounds := flag.Int("rounds", 100000, "number of rounds to simulate")
	bettors := flag.Int("bettors", 6, "bettors per round")
	stake := flag.Int64("stake", 1000, "stake of every bet")
	flag.Parse()

	if *rounds <= 0 || *bettors <= 0 || *stake <= 0 {
		fmt.Fprintln(os.Stderr, "rounds, bettors and stake must be positive")
		os.Exit(2)
	}

	fmt.Println("=== Coino Wheel Fairness Analysis ===")

	counts, err := analyzeDraws(*rounds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "draw failed: %v\n", err)
		os.Exit(1)
	}
	printDistribution(counts, *rounds)

	if err := analyzePayouts(*rounds, *bettors, *stake); err != nil {
		fmt.Fprintf(os.Stderr, "payout simulation failed: %v\n", err)
		os.Exit(1)
	}
}

// analyzeDraws counts how often each outcome is drawn
func analyzeDraws(numTrials int) (map[models.Outcome]int, error) {
	counts := make(map[models.Outcome]int, len(models.Outcomes))
	for i := 0; i < numTrials; i++ {
		outcome, err := service.DrawOutcome()
		if err != nil {
			return nil, err
		}
		counts[outcome]++
	}
	return counts, nil
}

func printDistribution(counts map[models.Outcome]int, numTrials int) {
	expected := float64(numTrials) / float64(len(models.Outcomes))
	fmt.Printf("\nOutcome distribution over %d draws (each should be ~%.0f):\n", numTrials, expected)

	chiSquared := 0.0
	for _, outcome := range models.Outcomes {
		observed := float64(counts[outcome])
		deviationPercent := (observed - expected) / expected * 100
		chiSquared += math.Pow(observed-expected, 2) / expected

		bar := ""
		for j := 0; j < int(observed/expected*20); j++ {
			bar += "█"
		}
		fmt.Printf("  %-7s %7d (%+5.2f%%) %s\n", outcome, counts[outcome], deviationPercent, bar)
	}

	fmt.Printf("\n  χ² (uniformity): %.2f (should be < %.2f for 95%% confidence with 5 df)", chiSquared, chiSquaredCritical)
	if chiSquared < chiSquaredCritical {
		fmt.Println(" ✓ PASS")
	} else {
		fmt.Println(" ✗ FAIL")
	}
}

// analyzePayouts simulates rounds where every bettor picks a color at random
// and reports where the staked coins end up
func analyzePayouts(numRounds, bettors int, stake int64) error {
	var (
		totalStakes  int64
		totalCredits int64
		totalHouse   int64
		totalLoose   int64
		emptyWinners int
	)

	for r := 0; r < numRounds; r++ {
		outcome, err := service.DrawOutcome()
		if err != nil {
			return err
		}

		bets := make([]*models.Bet, bettors)
		for i := range bets {
			bets[i] = &models.Bet{
				ID:      int64(i + 1),
				UserID:  fmt.Sprintf("user-%d", i),
				Outcome: models.Outcomes[rand.Intn(len(models.Outcomes))],
				Amount:  stake,
				Debited: true,
			}
		}

		plan := service.PlanSettlement(outcome, bets)
		totalStakes += plan.TotalStakes
		totalHouse += plan.HouseShare
		totalLoose += plan.Unallocated
		if plan.Winners == 0 {
			emptyWinners++
		}
		for _, payout := range plan.Payouts {
			totalCredits += payout.Credit()
		}
	}

	returned := float64(totalCredits) / float64(totalStakes)
	fmt.Printf("\nPayout analysis (%d rounds, %d bettors, %d coin stakes):\n", numRounds, bettors, stake)
	fmt.Printf("  Staked:          %d\n", totalStakes)
	fmt.Printf("  Paid back:       %d (%.4f%% of stakes)\n", totalCredits, returned*100)
	fmt.Printf("  House share:     %d (%.4f%%)\n", totalHouse, float64(totalHouse)/float64(totalStakes)*100)
	fmt.Printf("  Unallocated:     %d\n", totalLoose)
	fmt.Printf("  Rounds with no winner: %d (%.2f%%)\n", emptyWinners, float64(emptyWinners)/float64(numRounds)*100)

	if conserved := totalCredits + totalHouse + totalLoose; conserved == totalStakes {
		fmt.Println("  ✓ Every staked coin is accounted for")
	} else {
		fmt.Printf("  ✗ Conservation broken: %d accounted vs %d staked\n", conserved, totalStakes)
	}
	return nil
}
