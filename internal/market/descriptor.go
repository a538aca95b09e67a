// Package market turns free-text market and selection labels into structured
// descriptors at placement time, and scores those descriptors against a final
// score at settlement time.
package market

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/betting-ledger/internal/domain"
)

var lineRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

var familyAliases = map[string]domain.MarketFamily{
	"match winner":        domain.MarketMatchWinner,
	"1x2":                 domain.MarketMatchWinner,
	"full time result":    domain.MarketMatchWinner,
	"match result":        domain.MarketMatchWinner,
	"both teams to score": domain.MarketBothToScore,
	"btts":                domain.MarketBothToScore,
	"double chance":       domain.MarketDoubleChance,
}

var winnerPicks = map[string]domain.Pick{
	"home": domain.PickHome,
	"1":    domain.PickHome,
	"draw": domain.PickDraw,
	"x":    domain.PickDraw,
	"away": domain.PickAway,
	"2":    domain.PickAway,
}

var doubleChancePicks = map[string]domain.Pick{
	"home or draw": domain.PickHomeOrDraw,
	"draw or home": domain.PickHomeOrDraw,
	"1x":           domain.PickHomeOrDraw,
	"home or away": domain.PickHomeOrAway,
	"away or home": domain.PickHomeOrAway,
	"12":           domain.PickHomeOrAway,
	"draw or away": domain.PickDrawOrAway,
	"away or draw": domain.PickDrawOrAway,
	"x2":           domain.PickDrawOrAway,
}

// Teams lets match-winner selections be given as a team name.
type Teams struct {
	Home string
	Away string
}

// Parse maps a market/selection label pair to a descriptor. Labels it does not
// recognise come back as MarketUnknown so settlement defers to a human.
func Parse(marketName, selectionName string, teams Teams) domain.MarketDescriptor {
	m := normalize(marketName)
	sel := normalize(selectionName)

	switch family := detectFamily(m, sel); family {
	case domain.MarketMatchWinner:
		return parseWinner(sel, teams)
	case domain.MarketOverUnder:
		return parseOverUnder(m, sel)
	case domain.MarketBothToScore:
		switch sel {
		case "yes":
			return domain.MarketDescriptor{Family: family, Pick: domain.PickYes}
		case "no":
			return domain.MarketDescriptor{Family: family, Pick: domain.PickNo}
		}
	case domain.MarketDoubleChance:
		if p, ok := doubleChancePicks[strings.ReplaceAll(sel, "/", " or ")]; ok {
			return domain.MarketDescriptor{Family: family, Pick: p}
		}
	}
	return unknown()
}

func detectFamily(m, sel string) domain.MarketFamily {
	if f, ok := familyAliases[m]; ok {
		return f
	}
	if strings.Contains(m, "over/under") || strings.Contains(m, "over under") ||
		strings.HasPrefix(m, "total goals") || strings.HasPrefix(m, "o/u") ||
		strings.HasPrefix(m, "over ") || strings.HasPrefix(m, "under ") {
		return domain.MarketOverUnder
	}
	if m == "" && (strings.HasPrefix(sel, "over ") || strings.HasPrefix(sel, "under ")) {
		return domain.MarketOverUnder
	}
	return domain.MarketUnknown
}

func parseWinner(sel string, teams Teams) domain.MarketDescriptor {
	if p, ok := winnerPicks[sel]; ok {
		return domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: p}
	}
	if h := normalize(teams.Home); h != "" && sel == h {
		return domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickHome}
	}
	if a := normalize(teams.Away); a != "" && sel == a {
		return domain.MarketDescriptor{Family: domain.MarketMatchWinner, Pick: domain.PickAway}
	}
	return unknown()
}

// parseOverUnder takes the line from the selection label first ("Over 2.5"),
// then from the market label ("Over/Under 2.5").
func parseOverUnder(m, sel string) domain.MarketDescriptor {
	var pick domain.Pick
	switch {
	case strings.HasPrefix(sel, "over"):
		pick = domain.PickOver
	case strings.HasPrefix(sel, "under"):
		pick = domain.PickUnder
	default:
		return unknown()
	}

	raw := lineRe.FindString(sel)
	if raw == "" {
		raw = lineRe.FindString(m)
	}
	if raw == "" {
		return unknown()
	}
	line, err := decimal.NewFromString(raw)
	if err != nil {
		return unknown()
	}
	return domain.MarketDescriptor{Family: domain.MarketOverUnder, Pick: pick, Line: &line}
}

func unknown() domain.MarketDescriptor {
	return domain.MarketDescriptor{Family: domain.MarketUnknown, Pick: domain.PickUnknown}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
