package services

import (
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/tropicaldog17/mangaguard/internal/models"
)

const (
	maxKeywords     = 5
	maxSimilarPosts = 3
	topRollupSize   = 10
	recentPostsSize = 10
	dayLayout       = "2006-01-02"
	hourLayout      = "15"
	hoursPerDay     = 24
)

// scoreBuckets are the histogram bands. A score falls into the first band whose upper
// bound it is below; the last band is closed.
var scoreBuckets = []struct {
	label string
	upper float64
}{
	{"0.0-0.1", 0.1},
	{"0.1-0.3", 0.3},
	{"0.3-0.5", 0.5},
	{"0.5-0.7", 0.7},
	{"0.7-0.9", 0.9},
	{"0.9-1.0", math.Inf(1)},
}

// riskScoreCategories contribute to an author's risk score. Editorial feedback is not a risk.
var riskScoreCategories = []models.RiskCategory{
	models.RiskHarassment,
	models.RiskSpoiler,
	models.RiskInappropriateContent,
	models.RiskBrandDamage,
	models.RiskSpam,
	models.RiskPersonalInfo,
}

func round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// ExtractKeywords returns up to five search keywords from content: punctuation and symbols
// become separators and tokens of one rune are dropped. Tokens keep the stored spelling
// (no width folding) because candidates are matched against the raw content.
func ExtractKeywords(content string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return r
	}, content)

	keywords := make([]string, 0, maxKeywords)
	for _, tok := range strings.Fields(cleaned) {
		if len([]rune(tok)) <= 1 {
			continue
		}
		keywords = append(keywords, tok)
		if len(keywords) == maxKeywords {
			break
		}
	}
	return keywords
}

// scoreAccumulator tracks count, sum, min and max of the non-null scores of a group of posts.
type scoreAccumulator struct {
	posts  int64
	scored int64
	sum    float64
	min    float64
	max    float64
	models.StatusBreakdown
}

func (a *scoreAccumulator) add(p *models.Post) {
	a.posts++
	switch p.Status {
	case models.StatusApproved:
		a.Approved++
	case models.StatusPending:
		a.Pending++
	case models.StatusRejected:
		a.Rejected++
	}
	if p.AIScore == nil {
		return
	}
	s := *p.AIScore
	if a.scored == 0 || s < a.min {
		a.min = s
	}
	if a.scored == 0 || s > a.max {
		a.max = s
	}
	a.scored++
	a.sum += s
}

func (a *scoreAccumulator) avg() float64 {
	if a.scored == 0 {
		return 0
	}
	return round(a.sum/float64(a.scored), 3)
}

// buildStats aggregates the report window. totals are all-time status counts.
func buildStats(days int, totals []models.StatusCount, posts []*models.Post, logs []*models.ModerationLog, now time.Time) *models.ModerationStats {
	stats := &models.ModerationStats{
		PeriodDays:       days,
		TotalCounts:      totals,
		RiskDistribution: map[models.RiskCategory]int64{},
		GeneratedAt:      now.UTC(),
	}
	if stats.TotalCounts == nil {
		stats.TotalCounts = []models.StatusCount{}
	}
	for _, t := range totals {
		stats.Summary.TotalPosts += t.Count
	}
	stats.Summary.PostsLastPeriod = int64(len(posts))
	if days > 0 {
		stats.Summary.AvgDailyPosts = int64(math.Round(float64(len(posts)) / float64(days)))
	}

	type dayStatus struct {
		date   string
		status models.PostStatus
	}
	daily := map[dayStatus]int64{}
	hourly := map[string]*scoreAccumulator{}
	buckets := make([]int64, len(scoreBuckets))
	authors := map[string]*scoreAccumulator{}
	works := map[string]*scoreAccumulator{}

	for _, p := range posts {
		created := p.CreatedAt.UTC()
		daily[dayStatus{created.Format(dayLayout), p.Status}]++

		hour := created.Format(hourLayout)
		if hourly[hour] == nil {
			hourly[hour] = &scoreAccumulator{}
		}
		hourly[hour].add(p)

		if p.AIScore != nil {
			for i, b := range scoreBuckets {
				if *p.AIScore < b.upper {
					buckets[i]++
					break
				}
			}
		}

		if len(p.DetectedRisks) > 0 {
			stats.Summary.RiskPosts++
			for _, r := range p.DetectedRisks {
				stats.RiskDistribution[r]++
			}
		}

		if authors[p.UserID] == nil {
			authors[p.UserID] = &scoreAccumulator{}
		}
		authors[p.UserID].add(p)

		if p.WorkTitle != nil && *p.WorkTitle != "" {
			if works[*p.WorkTitle] == nil {
				works[*p.WorkTitle] = &scoreAccumulator{}
			}
			works[*p.WorkTitle].add(p)
		}
	}

	stats.DailyStats = make([]models.DailyStatusCount, 0, len(daily))
	for k, n := range daily {
		stats.DailyStats = append(stats.DailyStats, models.DailyStatusCount{Date: k.date, Status: k.status, Count: n})
	}
	sort.Slice(stats.DailyStats, func(i, j int) bool {
		a, b := stats.DailyStats[i], stats.DailyStats[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.Status < b.Status
	})

	stats.HourlyStats = make([]models.HourlyStat, 0, len(hourly))
	for h, acc := range hourly {
		stats.HourlyStats = append(stats.HourlyStats, models.HourlyStat{Hour: h, Count: acc.posts, AvgScore: acc.avg()})
	}
	sort.Slice(stats.HourlyStats, func(i, j int) bool { return stats.HourlyStats[i].Hour < stats.HourlyStats[j].Hour })

	stats.ScoreDistribution = make([]models.ScoreBucket, len(scoreBuckets))
	for i, b := range scoreBuckets {
		stats.ScoreDistribution[i] = models.ScoreBucket{Range: b.label, Count: buckets[i]}
	}

	stats.UserStats = make([]models.AuthorRollup, 0, len(authors))
	for id, acc := range authors {
		stats.UserStats = append(stats.UserStats, models.AuthorRollup{
			UserID: id, PostCount: acc.posts, AvgScore: acc.avg(), StatusBreakdown: acc.StatusBreakdown,
		})
	}
	sort.Slice(stats.UserStats, func(i, j int) bool {
		a, b := stats.UserStats[i], stats.UserStats[j]
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return a.UserID < b.UserID
	})
	if len(stats.UserStats) > topRollupSize {
		stats.UserStats = stats.UserStats[:topRollupSize]
	}

	stats.MangaStats = make([]models.WorkRollup, 0, len(works))
	for title, acc := range works {
		stats.MangaStats = append(stats.MangaStats, models.WorkRollup{
			WorkTitle: title, PostCount: acc.posts, AvgScore: acc.avg(), StatusBreakdown: acc.StatusBreakdown,
		})
	}
	sort.Slice(stats.MangaStats, func(i, j int) bool {
		a, b := stats.MangaStats[i], stats.MangaStats[j]
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return a.WorkTitle < b.WorkTitle
	})
	if len(stats.MangaStats) > topRollupSize {
		stats.MangaStats = stats.MangaStats[:topRollupSize]
	}

	type dayAction struct {
		date   string
		action models.LogAction
	}
	actions := map[dayAction]int64{}
	for _, l := range logs {
		actions[dayAction{l.CreatedAt.UTC().Format(dayLayout), l.Action}]++
	}
	stats.DailyActions = make([]models.DailyActionCount, 0, len(actions))
	for k, n := range actions {
		stats.DailyActions = append(stats.DailyActions, models.DailyActionCount{Date: k.date, Action: k.action, Count: n})
	}
	sort.Slice(stats.DailyActions, func(i, j int) bool {
		a, b := stats.DailyActions[i], stats.DailyActions[j]
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.Action < b.Action
	})

	return stats
}

// activityDays counts calendar spans between the first and last post, inclusive of both ends.
func activityDays(first, last time.Time) int64 {
	span := last.Sub(first)
	if span <= 0 {
		return 1
	}
	return int64(math.Ceil(span.Hours()/hoursPerDay)) + 1
}

// buildUserActivity rolls up one author's posts. posts must all belong to userID.
func buildUserActivity(userID string, posts []*models.Post) models.UserActivity {
	ua := models.UserActivity{
		UserID:      userID,
		RiskCounts:  make(map[models.RiskCategory]int64, len(models.RiskCategories)),
		MangaTitles: []string{},
	}
	for _, c := range models.RiskCategories {
		ua.RiskCounts[c] = 0
	}

	acc := &scoreAccumulator{}
	titles := map[string]bool{}
	for i, p := range posts {
		acc.add(p)
		for _, r := range p.DetectedRisks {
			ua.RiskCounts[r]++
		}
		if p.WorkTitle != nil && *p.WorkTitle != "" && !titles[*p.WorkTitle] {
			titles[*p.WorkTitle] = true
			ua.MangaTitles = append(ua.MangaTitles, *p.WorkTitle)
		}
		created := p.CreatedAt.UTC()
		if i == 0 || created.Before(ua.FirstPostDate) {
			ua.FirstPostDate = created
		}
		if i == 0 || created.After(ua.LastPostDate) {
			ua.LastPostDate = created
		}
	}
	sort.Strings(ua.MangaTitles)

	ua.PostCount = acc.posts
	ua.StatusBreakdown = acc.StatusBreakdown
	ua.AvgScore = acc.avg()
	ua.MinScore = round(acc.min, 3)
	ua.MaxScore = round(acc.max, 3)
	ua.MangaCount = int64(len(ua.MangaTitles))
	if ua.PostCount == 0 {
		return ua
	}

	ua.ActivityDays = activityDays(ua.FirstPostDate, ua.LastPostDate)
	ua.PostsPerDay = round(float64(ua.PostCount)/float64(ua.ActivityDays), 2)

	var risky int64
	for _, c := range riskScoreCategories {
		risky += ua.RiskCounts[c]
	}
	ua.RiskScore = round(float64(risky)/float64(ua.PostCount), 3)
	return ua
}

// groupByAuthor groups posts by user_id, keeping the authors in first-seen order.
func groupByAuthor(posts []*models.Post) ([]string, map[string][]*models.Post) {
	var order []string
	groups := map[string][]*models.Post{}
	for _, p := range posts {
		if _, ok := groups[p.UserID]; !ok {
			order = append(order, p.UserID)
		}
		groups[p.UserID] = append(groups[p.UserID], p)
	}
	return order, groups
}

// selectUserActivity builds, filters and orders the activity rows. The filter must be normalized.
func selectUserActivity(posts []*models.Post, f *models.UserActivityFilter) []models.UserActivity {
	order, groups := groupByAuthor(posts)
	rows := make([]models.UserActivity, 0, len(order))
	for _, id := range order {
		group := groups[id]
		if f.Risk != "" && !anyHasRisk(group, f.Risk) {
			continue
		}
		ua := buildUserActivity(id, group)
		if ua.PostCount < int64(f.MinPosts) || ua.PostCount > int64(f.MaxPosts) {
			continue
		}
		if ua.AvgScore < f.MinAvgScore || ua.AvgScore > f.MaxAvgScore {
			continue
		}
		rows = append(rows, ua)
	}

	less := userActivityLess(f.SortBy)
	asc := f.SortOrder == models.SortAsc
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := &rows[i], &rows[j]
		if less(a, b) {
			return asc
		}
		if less(b, a) {
			return !asc
		}
		return a.UserID < b.UserID
	})
	return rows
}

func anyHasRisk(posts []*models.Post, risk models.RiskCategory) bool {
	for _, p := range posts {
		if p.DetectedRisks.Contains(risk) {
			return true
		}
	}
	return false
}

// userActivityLess returns an ascending comparison for an allow-listed sort field.
func userActivityLess(field string) func(a, b *models.UserActivity) bool {
	switch field {
	case "user_id":
		return func(a, b *models.UserActivity) bool { return a.UserID < b.UserID }
	case "avg_score":
		return func(a, b *models.UserActivity) bool { return a.AvgScore < b.AvgScore }
	case "min_score":
		return func(a, b *models.UserActivity) bool { return a.MinScore < b.MinScore }
	case "max_score":
		return func(a, b *models.UserActivity) bool { return a.MaxScore < b.MaxScore }
	case "approved_count":
		return func(a, b *models.UserActivity) bool { return a.Approved < b.Approved }
	case "pending_count":
		return func(a, b *models.UserActivity) bool { return a.Pending < b.Pending }
	case "rejected_count":
		return func(a, b *models.UserActivity) bool { return a.Rejected < b.Rejected }
	case "first_post_date":
		return func(a, b *models.UserActivity) bool { return a.FirstPostDate.Before(b.FirstPostDate) }
	case "last_post_date":
		return func(a, b *models.UserActivity) bool { return a.LastPostDate.Before(b.LastPostDate) }
	case "risk_score":
		return func(a, b *models.UserActivity) bool { return a.RiskScore < b.RiskScore }
	default:
		return func(a, b *models.UserActivity) bool { return a.PostCount < b.PostCount }
	}
}

// buildUserDetail assembles the drill-down report. posts are all of the author's posts,
// newest first.
func buildUserDetail(userID string, posts []*models.Post, days int, now time.Time) *models.UserDetail {
	detail := &models.UserDetail{
		UserID:       userID,
		BasicStats:   buildUserActivity(userID, posts),
		RiskAnalysis: map[models.RiskCategory]int64{},
	}
	for c, n := range detail.BasicStats.RiskCounts {
		detail.RiskAnalysis[c] = n
	}

	since := now.UTC().AddDate(0, 0, -days)
	daily := map[string]*scoreAccumulator{}
	type workAcc struct {
		acc         *scoreAccumulator
		first, last time.Time
	}
	works := map[string]*workAcc{}
	for _, p := range posts {
		created := p.CreatedAt.UTC()
		if !created.Before(since) {
			day := created.Format(dayLayout)
			if daily[day] == nil {
				daily[day] = &scoreAccumulator{}
			}
			daily[day].add(p)
		}
		if p.WorkTitle != nil && *p.WorkTitle != "" {
			w := works[*p.WorkTitle]
			if w == nil {
				w = &workAcc{acc: &scoreAccumulator{}, first: created, last: created}
				works[*p.WorkTitle] = w
			}
			w.acc.add(p)
			if created.Before(w.first) {
				w.first = created
			}
			if created.After(w.last) {
				w.last = created
			}
		}
	}

	detail.DailyActivity = make([]models.DailyActivity, 0, len(daily))
	for day, acc := range daily {
		detail.DailyActivity = append(detail.DailyActivity, models.DailyActivity{
			Date: day, PostCount: acc.posts, AvgScore: acc.avg(), StatusBreakdown: acc.StatusBreakdown,
		})
	}
	sort.Slice(detail.DailyActivity, func(i, j int) bool { return detail.DailyActivity[i].Date > detail.DailyActivity[j].Date })

	detail.MangaActivity = make([]models.WorkActivity, 0, len(works))
	for title, w := range works {
		detail.MangaActivity = append(detail.MangaActivity, models.WorkActivity{
			WorkTitle: title, PostCount: w.acc.posts, AvgScore: w.acc.avg(),
			FirstPost: w.first, LastPost: w.last, StatusBreakdown: w.acc.StatusBreakdown,
		})
	}
	sort.Slice(detail.MangaActivity, func(i, j int) bool {
		a, b := detail.MangaActivity[i], detail.MangaActivity[j]
		if a.PostCount != b.PostCount {
			return a.PostCount > b.PostCount
		}
		return a.WorkTitle < b.WorkTitle
	})
	if len(detail.MangaActivity) > topRollupSize {
		detail.MangaActivity = detail.MangaActivity[:topRollupSize]
	}

	recent := posts
	if len(recent) > recentPostsSize {
		recent = recent[:recentPostsSize]
	}
	detail.RecentPosts = recent
	return detail
}
