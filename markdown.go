package telerelay

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/gotd/td/tg"
)

type entityInfo struct {
	offset   int
	length   int
	startTag string
	endTag   string
	id       int // unique ID for tracking in stack
}

type tagEvent struct {
	pos      int
	isStart  bool
	entity   *entityInfo
	priority int // for sorting: starts before ends at same position
}

// EntitiesToMarkdown renders message text with its formatting entities as
// Telegram-style markdown: **bold**, __italic__, ~~strike~~, ||spoiler||,
// `code`, ```pre```, [text](url). Entities Telegram markdown has no syntax for are
// dropped. Offsets are UTF-16 code units, as sent by Telegram.
//
// The result is what route filters see, so "spend **50** SOL" still matches
// number patterns once asterisks are stripped.
func EntitiesToMarkdown(text string, entities []tg.MessageEntityClass) string {
	if len(entities) == 0 {
		return text
	}

	units := utf16.Encode([]rune(text))

	var infos []*entityInfo
	for i, entity := range entities {
		var offset, length int
		var startTag, endTag string

		switch e := entity.(type) {
		case *tg.MessageEntityBold:
			offset, length = e.Offset, e.Length
			startTag, endTag = "**", "**"
		case *tg.MessageEntityItalic:
			offset, length = e.Offset, e.Length
			startTag, endTag = "__", "__"
		case *tg.MessageEntityStrike:
			offset, length = e.Offset, e.Length
			startTag, endTag = "~~", "~~"
		case *tg.MessageEntitySpoiler:
			offset, length = e.Offset, e.Length
			startTag, endTag = "||", "||"
		case *tg.MessageEntityCode:
			offset, length = e.Offset, e.Length
			startTag, endTag = "`", "`"
		case *tg.MessageEntityPre:
			offset, length = e.Offset, e.Length
			startTag, endTag = "```"+e.Language+"\n", "```"
		case *tg.MessageEntityTextURL:
			offset, length = e.Offset, e.Length
			startTag, endTag = "[", "]("+e.URL+")"
		case *tg.MessageEntityMentionName:
			offset, length = e.Offset, e.Length
			startTag, endTag = "[", "](tg://user?id="+strconv.FormatInt(e.UserID, 10)+")"
		default:
			continue
		}

		if offset < 0 || length <= 0 || offset+length > len(units) {
			continue
		}

		// Telegram clients often include trailing spaces in entities.
		for length > 0 && (units[offset+length-1] == ' ' || units[offset+length-1] == '\t') {
			length--
		}
		if length <= 0 {
			continue
		}

		infos = append(infos, &entityInfo{
			offset:   offset,
			length:   length,
			startTag: startTag,
			endTag:   endTag,
			id:       i,
		})
	}

	if len(infos) == 0 {
		return text
	}

	var events []tagEvent
	for _, info := range infos {
		events = append(events,
			tagEvent{pos: info.offset, isStart: true, entity: info, priority: 0},
			tagEvent{pos: info.offset + info.length, isStart: false, entity: info, priority: 1},
		)
	}

	// By position, then starts before ends, then longer entities wrap shorter.
	slices.SortFunc(events, func(a, b tagEvent) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		if a.isStart {
			return cmp.Compare(b.entity.length, a.entity.length)
		}
		return cmp.Compare(a.entity.length, b.entity.length)
	})

	closingAt := make(map[int]map[int]bool) // pos -> entity id -> true
	for _, event := range events {
		if !event.isStart {
			if closingAt[event.pos] == nil {
				closingAt[event.pos] = make(map[int]bool)
			}
			closingAt[event.pos][event.entity.id] = true
		}
	}

	var result strings.Builder
	var openStack []*entityInfo
	alreadyClosed := make(map[int]bool)
	lastPos := 0

	for _, event := range events {
		if event.pos > lastPos {
			result.WriteString(string(utf16.Decode(units[lastPos:event.pos])))
			lastPos = event.pos
		}

		if event.isStart {
			result.WriteString(event.entity.startTag)
			openStack = append(openStack, event.entity)
			continue
		}

		if alreadyClosed[event.entity.id] {
			continue
		}

		idx := slices.IndexFunc(openStack, func(e *entityInfo) bool {
			return e.id == event.entity.id
		})
		if idx < 0 {
			continue
		}

		var toClose []*entityInfo
		for i := len(openStack) - 1; i >= idx; i-- {
			toClose = append(toClose, openStack[i])
		}
		for _, e := range toClose {
			result.WriteString(e.endTag)
			alreadyClosed[e.id] = true
		}
		openStack = openStack[:idx]

		// Reopen entities that were closed only to keep nesting valid.
		for i := len(toClose) - 1; i >= 0; i-- {
			e := toClose[i]
			if e.id == event.entity.id || closingAt[event.pos][e.id] {
				continue
			}
			result.WriteString(e.startTag)
			openStack = append(openStack, e)
			delete(alreadyClosed, e.id)
		}
	}

	if lastPos < len(units) {
		result.WriteString(string(utf16.Decode(units[lastPos:])))
	}

	return result.String()
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
