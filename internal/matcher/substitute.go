package matcher

import "strings"

// Substitute 将响应体中的 {{name}} 替换为路由参数值。
// 按参数出现顺序逐个替换，先替换的值中含有后续参数的 {{...}} 时会被一并展开；
// 同名参数保留首次出现的位置，取最后出现的值。
func Substitute(body string, params Params) string {
	if body == "" || params == nil {
		return body
	}
	order := make([]string, 0, len(params))
	values := make(map[string]string, len(params))
	for _, p := range params {
		token := "{{" + strings.TrimPrefix(p.Name, ":") + "}}"
		if _, ok := values[token]; !ok {
			order = append(order, token)
		}
		values[token] = p.Value
	}
	for _, token := range order {
		body = strings.ReplaceAll(body, token, values[token])
	}
	return body
}
