package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"chatpulse/internal/domain/influence"
	"chatpulse/internal/domain/profile"
)

const (
	reportRankingLimit  = 5
	reportEvidenceLimit = 2
)

// BuildReport renders the run as Markdown for human review. Deterministic
// for a deterministic result: section order and member order follow the
// ranking.
func BuildReport(channelName string, result *Result) string {
	var b strings.Builder

	title := channelName
	if title == "" {
		title = result.ChannelID
	}
	// Rehydrated results carry no raw messages, only per-member totals
	messageCount := len(result.Messages)
	if messageCount == 0 {
		for _, m := range result.Members {
			messageCount += m.TotalMessages
		}
	}

	fmt.Fprintf(&b, "# Influence Report: %s\n\n", title)
	fmt.Fprintf(&b, "Analyzed %s messages from %s members. Detected %s market events.\n\n",
		humanize.Comma(int64(messageCount)),
		humanize.Comma(int64(len(result.Members))),
		humanize.Comma(int64(len(result.Events))))

	writeRanking(&b, result.Members)
	writeEvents(&b, result)
	writeProfiles(&b, result.Profiles)
	writeInsights(&b, result)

	if result.Elapsed > 0 {
		fmt.Fprintf(&b, "---\n\nGenerated in %s with %d LLM calls.\n",
			result.Elapsed.Round(time.Millisecond), result.LLMCallCount)
	}

	return b.String()
}

func writeRanking(b *strings.Builder, members []*influence.MemberInfluence) {
	b.WriteString("## Top Influencers\n\n")

	limit := len(members)
	if limit > reportRankingLimit {
		limit = reportRankingLimit
	}

	for _, m := range members[:limit] {
		fmt.Fprintf(b, "### %d. %s (score %.1f)\n\n", m.Rank, m.UserName, m.InfluenceScore)
		fmt.Fprintf(b, "- %d messages, %.0f%% forward-looking\n", m.TotalMessages, m.ForwardLookingRatio*100)
		fmt.Fprintf(b, "- forward-looking: %d, replies received: %d, behavior changes: %d, event presence: %d\n",
			m.ForwardLookingCount, m.CitationCount, m.BehaviorChangeCount, m.KeyEventPresence)
		if m.HindsightCount > 0 || m.EmotionalSpamCount > 0 {
			fmt.Fprintf(b, "- penalties: %d hindsight, %d emotional spam\n", m.HindsightCount, m.EmotionalSpamCount)
		}

		evidence := m.TopMessages
		if len(evidence) > reportEvidenceLimit {
			evidence = evidence[:reportEvidenceLimit]
		}
		for _, ev := range evidence {
			fmt.Fprintf(b, "- > %s\n", oneLine(ev.Text))
		}
		b.WriteString("\n")
	}
}

func writeEvents(b *strings.Builder, result *Result) {
	if len(result.Events) == 0 {
		return
	}

	b.WriteString("## Market Events\n\n")
	for _, ev := range result.Events {
		fmt.Fprintf(b, "- **%s** %s - %s (intensity %.2f, %d messages)\n",
			ev.Type,
			ev.Start.Format("15:04"), ev.End.Format("15:04"),
			ev.Intensity, len(ev.RelatedMessages))
	}
	b.WriteString("\n")
}

func writeProfiles(b *strings.Builder, profiles []*profile.MemberProfile) {
	if len(profiles) == 0 {
		return
	}

	b.WriteString("## Member Profiles\n\n")

	limit := len(profiles)
	if limit > reportRankingLimit {
		limit = reportRankingLimit
	}

	for _, p := range profiles[:limit] {
		fmt.Fprintf(b, "### %s\n\n", p.UserName)
		fmt.Fprintf(b, "- role: %s, style: %s\n", orDash(string(p.RoleType)), orDash(string(p.TradingStyle)))
		if p.CoreBias != "" {
			fmt.Fprintf(b, "- bias: %s\n", p.CoreBias)
		}
		if resolved := len(p.ValidatedViews) + len(p.RejectedViews); resolved > 0 {
			fmt.Fprintf(b, "- accuracy: %.0f%% (%d of %d views validated)\n",
				p.AccuracyRate()*100, len(p.ValidatedViews), resolved)
		}
		if n := len(p.PendingViews); n > 0 {
			fmt.Fprintf(b, "- pending views: %d\n", n)
		}
		for _, t := range p.RiskTriggers {
			fmt.Fprintf(b, "- risk: %s\n", t)
		}
		b.WriteString("\n")
	}
}

func writeInsights(b *strings.Builder, result *Result) {
	ins := result.Insights
	if ins == nil {
		return
	}

	b.WriteString("## Group Insights\n\n")
	if ins.Summary != "" {
		fmt.Fprintf(b, "%s\n\n", ins.Summary)
	}

	fmt.Fprintf(b, "- opinion anchors: %s\n", nameList(result.Members, ins.OpinionAnchors))
	if len(ins.EmotionAmplifiers) > 0 {
		fmt.Fprintf(b, "- emotion amplifiers: %s\n", nameList(result.Members, ins.EmotionAmplifiers))
	}
	fmt.Fprintf(b, "- stance diversity: %.1f (0 uniform, 1 diverse)\n", ins.EchoChamberScore)
	fmt.Fprintf(b, "- susceptibility: %.2f\n", ins.GroupSusceptibility)
	if ins.OverRelianceWarning {
		fmt.Fprintf(b, "- **over-reliance warning**: %s dominate the group's influence\n",
			nameList(result.Members, ins.OverRelianceUsers))
	}
	b.WriteString("\n")
}

// nameList maps user ids to display names where known
func nameList(members []*influence.MemberInfluence, userIDs []string) string {
	if len(userIDs) == 0 {
		return "none"
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		names[m.UserID] = m.UserName
	}

	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if name, ok := names[id]; ok && name != "" {
			out = append(out, name)
		} else {
			out = append(out, id)
		}
	}
	return strings.Join(out, ", ")
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	const max = 120
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max]) + "..."
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
