package annotate

import (
	"regexp"

	"chatpulse/internal/domain/chat"
)

// Pattern tables for the rule-based feature categories. Direction and action
// resolve to exactly one sub-type via first-match-wins over the declaration
// order below; all other categories are independent boolean flags.
//
// The tables are bilingual (English/Chinese) because the communities this
// pipeline was built for mix both.

type directionPattern struct {
	direction chat.DirectionType
	re        *regexp.Regexp
}

type actionPattern struct {
	action chat.ActionType
	re     *regexp.Regexp
}

var directionPatterns = []directionPattern{
	{chat.DirectionBullish, regexp.MustCompile(`(?i)\b(bull(ish)?|long|moon(ing)?|pump(ing)?|rally|breakout)\b|看多|做多|看涨|利好|要涨|大涨|突破|新高|反弹|抄底`)},
	{chat.DirectionBearish, regexp.MustCompile(`(?i)\b(bear(ish)?|short|dump(ing)?|crash(ing)?|selloff|breakdown)\b|看空|做空|看跌|利空|要跌|大跌|崩盘?|新低|见顶|回调`)},
}

var actionPatterns = []actionPattern{
	{chat.ActionAdd, regexp.MustCompile(`(?i)\b(add(ed|ing)?|dca|top(ped)? up)\b|加仓|补仓`)},
	{chat.ActionReduce, regexp.MustCompile(`(?i)\b(reduce[d]?|trim(med)?|scal(e|ed|ing) out)\b|减仓|减持`)},
	{chat.ActionBuy, regexp.MustCompile(`(?i)\b(buy(ing)?|bought|long(ed)? in|ape[d]? in)\b|买入|买进|买了|建仓|进场|上车|梭哈`)},
	{chat.ActionSell, regexp.MustCompile(`(?i)\b(sell(ing)?|sold|exit(ed)?|close[d]? out)\b|卖出|卖了|清仓|出货|离场|止盈|止损`)},
	{chat.ActionHold, regexp.MustCompile(`(?i)\b(hold(ing)?|hodl)\b|持有|拿住|躺平|不动`)},
}

var conditionPattern = regexp.MustCompile(`(?i)\b(if|when|unless|once|in case|as long as)\b|如果|要是|假如|一旦|除非|的话|站稳.{0,8}就|跌破.{0,8}就|突破.{0,8}就`)

var hindsightPattern = regexp.MustCompile(`(?i)\b(told you( so)?|called it|as i (said|predicted)|knew it)\b|早就?说过?了?|我说过|说对了吧?|果然|如我所料|应验了?|没听我的`)

var emotionalPattern = regexp.MustCompile(`(?i)\b(lol|lmao|omg|wtf|lfg|insane|crazy|rekt)\b|to the moon|[!！]{2,}|[?？]{3,}|哈哈哈+|卧槽|我去|牛逼|绝了|无语|完蛋|完了|起飞|666+|🚀|😭|😱|🔥`)

// classify fills the feature flags for a single message text
func classify(text string) chat.MessageFeatures {
	var f chat.MessageFeatures

	for _, p := range directionPatterns {
		if p.re.MatchString(text) {
			f.HasDirection = true
			f.DirectionType = p.direction
			break
		}
	}

	for _, p := range actionPatterns {
		if p.re.MatchString(text) {
			f.HasAction = true
			f.ActionType = p.action
			break
		}
	}

	f.HasCondition = conditionPattern.MatchString(text)
	f.IsHindsight = hindsightPattern.MatchString(text)
	f.IsEmotional = emotionalPattern.MatchString(text)

	return f
}
