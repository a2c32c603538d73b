package filter

import (
	"strings"

	"reqreplay/pkg/model"
)

var webRequestKinds = map[string]model.Kind{
	"xmlhttprequest": model.KindXHR,
	"stylesheet":     model.KindCSS,
	"script":         model.KindScript,
	"image":          model.KindImg,
	"font":           model.KindFont,
	"media":          model.KindMedia,
	"websocket":      model.KindMedia,
	"main_frame":     model.KindDoc,
	"sub_frame":      model.KindDoc,
	"object":         model.KindOther,
	"ping":           model.KindOther,
	"csp_report":     model.KindOther,
	"other":          model.KindOther,
}

var resourceKinds = map[string]model.Kind{
	"xhr":        model.KindXHR,
	"fetch":      model.KindFetch,
	"stylesheet": model.KindCSS,
	"script":     model.KindScript,
	"image":      model.KindImg,
	"font":       model.KindFont,
	"media":      model.KindMedia,
	"websocket":  model.KindMedia,
	"document":   model.KindDoc,
}

// KindFromWebRequestType 将 webRequest 资源类型映射为条目类别
func KindFromWebRequestType(t string) model.Kind {
	if k, ok := webRequestKinds[t]; ok {
		return k
	}
	return model.KindOther
}

// KindFromResourceType 将 DevTools 资源类型映射为条目类别
func KindFromResourceType(t string) model.Kind {
	k, _ := resourceKind(t)
	return k
}

// KindOf 依次尝试 DevTools 与 webRequest 两套词汇
func KindOf(t string) model.Kind {
	if k, ok := resourceKind(t); ok {
		return k
	}
	return KindFromWebRequestType(strings.ToLower(t))
}

func resourceKind(t string) (model.Kind, bool) {
	if k, ok := resourceKinds[strings.ToLower(t)]; ok {
		return k, true
	}
	return model.KindOther, false
}

// IsScripted xhr/fetch 由页面脚本发起，其余为页面资源
func IsScripted(k model.Kind) bool {
	return k == model.KindXHR || k == model.KindFetch
}
