// internal/api/pages.go
package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/StorySpark/internal/services"
	"github.com/Corphon/StorySpark/internal/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// ThemeCookie 主题 cookie 名称
const ThemeCookie = "theme"

// 主题取值
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// NavLink 导航链接
type NavLink struct {
	Name   string
	Href   string
	Active bool
}

var navigation = []NavLink{
	{Name: "Home", Href: "/"},
	{Name: "Create", Href: "/app"},
	{Name: "About", Href: "/about"},
}

// NavLinks 根据当前路径标记激活的链接
func NavLinks(path string) []NavLink {
	links := make([]NavLink, len(navigation))
	for i, link := range navigation {
		link.Active = link.Href == path
		links[i] = link
	}
	return links
}

// ToggleTheme 在 light 和 dark 之间切换，未知值视为 light
func ToggleTheme(theme string) string {
	if theme == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// currentTheme 读取主题 cookie，默认 light
func currentTheme(c *gin.Context) string {
	if theme, err := c.Cookie(ThemeCookie); err == nil && theme == ThemeDark {
		return ThemeDark
	}
	return ThemeLight
}

// loadTemplates 解析内嵌的页面模板
func loadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"list": func(items ...string) []string { return items },
	}).ParseFS(templateFS, "templates/*.html")
}

// pageData 所有页面共用的布局数据
func pageData(c *gin.Context, title string, extra gin.H) gin.H {
	data := gin.H{
		"title": title,
		"theme": currentTheme(c),
		"nav":   NavLinks(c.Request.URL.Path),
	}
	for k, v := range extra {
		data[k] = v
	}
	return data
}

// IndexPage 首页
func (h *Handler) IndexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", pageData(c, "StorySpark - AI-Powered Audio Drama Platform", nil))
}

// AboutPage 关于页
func (h *Handler) AboutPage(c *gin.Context) {
	c.HTML(http.StatusOK, "about.html", pageData(c, "About - StorySpark", nil))
}

// AppPage 创作向导页，首屏直接渲染当前工作区
func (h *Handler) AppPage(c *gin.Context) {
	voices, err := h.Voices.ListVoices(c.Request.Context())
	if err != nil {
		utils.GetLogger().Warn("创作页获取语音列表失败", map[string]interface{}{"error": err})
	}
	c.HTML(http.StatusOK, "app.html", pageData(c, "Create - StorySpark", gin.H{
		"state":  h.workspace(c).Snapshot(),
		"voices": voices,
		"music":  services.MusicOptions,
		"sample": services.SampleStory,
	}))
}

// SwitchTheme 切换主题后回到来源页面
func (h *Handler) SwitchTheme(c *gin.Context) {
	theme := ToggleTheme(currentTheme(c))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(ThemeCookie, theme, 365*24*3600, "/", "", false, false)

	c.Redirect(http.StatusSeeOther, redirectTarget(c.Request.Referer()))
}

// redirectTarget 只允许跳回本站路径
func redirectTarget(referer string) string {
	if referer == "" {
		return "/"
	}
	u, err := url.Parse(referer)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return u.Path
}
