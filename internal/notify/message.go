package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/stonexiaolei/tuzhan-data/internal/report"
	"github.com/stonexiaolei/tuzhan-data/internal/validation"
	"github.com/stonexiaolei/tuzhan-data/pkg/config"
)

// Message is the 企业微信 robot webhook payload
type Message struct {
	MsgType             string   `json:"msgtype"`
	Markdown            Markdown `json:"markdown"`
	MentionedList       []string `json:"mentioned_list,omitempty"`
	MentionedMobileList []string `json:"mentioned_mobile_list,omitempty"`
}

// Markdown is the markdown body of a Message
type Markdown struct {
	Content string `json:"content"`
}

// ProblemText maps a classified problem to its reader-facing description
func ProblemText(p validation.Problem) string {
	switch p {
	case validation.ProblemQueryError:
		return "查询出错"
	case validation.ProblemNoTodayData:
		return "无当天数据"
	case validation.ProblemLatestNotToday:
		return "最新数据非当天"
	case validation.ProblemStaleUpdate:
		return "数据更新滞后"
	default:
		return "数据异常"
	}
}

// Builder assembles webhook messages from aggregated results, resolving
// display names the same way the report does
type Builder struct {
	ChainNames      map[string]string
	CollectionNames map[string]string
	Mentions        config.WeChatConfig
	Loc             *time.Location
}

func (b Builder) collectionName(collection string) string {
	if name, ok := b.CollectionNames[collection]; ok {
		return name
	}
	return collection
}

func (b Builder) chainName(chainID string) string {
	if name, ok := b.ChainNames[chainID]; ok {
		return name
	}
	return fmt.Sprintf("连锁ID:%s", chainID)
}

func (b Builder) message(content string) Message {
	return Message{
		MsgType:             "markdown",
		Markdown:            Markdown{Content: content},
		MentionedList:       b.Mentions.MentionedList,
		MentionedMobileList: b.Mentions.MentionedMobileList,
	}
}

// ChainReport renders one chain's general-policy summary; the anomaly table
// lists collections whose latest update missed the overnight landing date
func (b Builder) ChainReport(sum report.ChainSummary, now time.Time) Message {
	today := validation.CivilDate(now, b.Loc)
	yesterday := validation.CivilDate(now.In(b.Loc).AddDate(0, 0, -1), b.Loc)

	var md strings.Builder
	fmt.Fprintf(&md, "# 📊 %s 数据统计报告\n", sum.ChainName)
	fmt.Fprintf(&md, "**统计日期**: %s  \n", today)
	fmt.Fprintf(&md, "**总记录数**: %d  \n", sum.TotalRecords)

	if len(sum.Anomalies) == 0 {
		md.WriteString("\n## ✅ 数据状态\n所有数据均为最新，无异常\n")
		return b.message(md.String())
	}

	md.WriteString("\n## ⚠️ 异常数据\n")
	fmt.Fprintf(&md, "以下数据的最新更新时间不是前一天日期(%s)，需要关注:\n\n", yesterday)
	md.WriteString("| 表名称 | 最后更新时间 |\n")
	md.WriteString("|--------|--------------|\n")

	for _, a := range sum.Anomalies {
		fmt.Fprintf(&md, "| %s | <font color=\"warning\">%s</font> |\n", a.DisplayName, a.LastUpdate)
	}

	return b.message(md.String())
}

// StrictReport renders the designated chain's same-day validation outcome
func (b Builder) StrictReport(sv *report.StrictValidation) Message {
	// Only collections that passed contribute to the displayed total
	var totalRecords int64
	for _, r := range sv.Results {
		if r.Success {
			totalRecords += r.TodayCount
		}
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# 📊 %s 数据统计报告\n", sv.ChainName)
	fmt.Fprintf(&md, "**统计日期**: %s  \n", sv.TodayDate)
	fmt.Fprintf(&md, "**总记录数**: %d  \n", totalRecords)

	if sv.Success {
		md.WriteString("\n## ✅ 数据状态\n所有数据均为最新，无异常")
		return b.message(md.String())
	}

	md.WriteString("\n## ⚠️ 异常数据\n")
	md.WriteString("以下数据需要关注:\n\n")

	for _, r := range sv.Results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&md, "- **%s**: %s\n", b.collectionName(r.Key.Collection), b.strictProblem(r, sv.ValidatedAt))
	}

	return b.message(md.String())
}

// strictProblem names why one strict evaluation failed. The priority order
// lives in the classifier; query errors surface their own message instead of
// the generic category text.
func (b Builder) strictProblem(r validation.Result, now time.Time) string {
	problem := validation.Classifier{Loc: b.Loc}.Classify(r, validation.PolicyStrict, now)
	if problem == validation.ProblemQueryError {
		return r.ErrorMessage()
	}
	return ProblemText(problem)
}

// TodayValidationReport renders the combined cross-chain strict run
func (b Builder) TodayValidationReport(results []validation.Result, now time.Time) Message {
	total := len(results)
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	failedCount := total - succeeded

	statusIcon, statusText, color := "✅", "全部通过", "info"
	if failedCount > 0 {
		statusIcon, statusText, color = "⚠️", "存在异常", "warning"
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s MongoDB 当天数据校验报告\n", statusIcon)
	fmt.Fprintf(&md, "**校验日期**: %s  \n", validation.CivilDate(now, b.Loc))
	fmt.Fprintf(&md, "**校验时间**: %s  \n", now.In(b.Loc).Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&md, "**校验状态**: <font color=\"%s\">%s</font>  \n", color, statusText)
	fmt.Fprintf(&md, "**成功**: <font color=\"info\">%d</font>  \n", succeeded)
	fmt.Fprintf(&md, "**失败**: <font color=\"warning\">%d</font>  \n", failedCount)
	fmt.Fprintf(&md, "**总计**: %d  \n\n", total)

	if failedCount == 0 {
		md.WriteString("## ✅ 验证结果\n所有连锁的当天数据均正常\n")
		return b.message(md.String())
	}

	md.WriteString("## ⚠️ 异常详情\n")
	md.WriteString("| 连锁名称 | 集合 | 当天数据量 | 最新数据时间 | 问题描述 |\n")
	md.WriteString("|----------|------|------------|--------------|----------|\n")

	for _, r := range results {
		if r.Success {
			continue
		}
		fmt.Fprintf(&md, "| %s | %s | %d | %s | %s |\n",
			b.chainName(r.Key.ChainID),
			b.collectionName(r.Key.Collection),
			r.TodayCount,
			report.LastUpdateDisplay(r, b.Loc),
			b.strictProblem(r, now),
		)
	}

	return b.message(md.String())
}
