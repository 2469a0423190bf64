package router

import "strings"

// Matches 判断具体键表达式 target 是否命中订阅模式 pattern
//
// 模式按 '/' 分段，"*" 匹配任意单段，"**" 匹配任意多段（含零段），
// 其余段要求逐字相等。target 必须是具体键表达式，不含通配符。
func Matches(pattern, target string) bool {
	if !strings.Contains(pattern, "*") {
		return pattern == target
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(target, "/"))
}

func matchSegments(pattern, target []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "**":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(target); i++ {
				if matchSegments(pattern[1:], target[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(target) == 0 {
				return false
			}
		default:
			if len(target) == 0 || pattern[0] != target[0] {
				return false
			}
		}
		pattern = pattern[1:]
		target = target[1:]
	}
	return len(target) == 0
}
