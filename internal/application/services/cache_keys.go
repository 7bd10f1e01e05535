package services

import "fmt"

// Cache key layout shared by the linking, scoring and invalidation services
const episodeCountPattern = "count:episode*"

// EpisodeCacheKey is the cache key of an episode
func EpisodeCacheKey(episodeID string) string {
	return fmt.Sprintf("episode:%s", episodeID)
}

// RiskScoreCacheKey is the cache key of a claim's risk score
func RiskScoreCacheKey(claimID string) string {
	return fmt.Sprintf("risk_score:%s", claimID)
}
