package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/jeandeaual/go-locale"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var bundle *i18n.Bundle
var localizer *i18n.Localizer

// Init 加载内置语言文件，lang 为空时按系统语言选择
func Init(lang string) error {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		return fmt.Errorf("读取语言文件目录失败: %w", err)
	}
	for _, entry := range entries {
		if path.Ext(entry.Name()) != ".json" {
			continue
		}
		if _, err := bundle.LoadMessageFileFS(localeFS, path.Join("locales", entry.Name())); err != nil {
			return fmt.Errorf("加载语言文件 %s 失败: %w", entry.Name(), err)
		}
	}

	SetLanguage(lang)
	return nil
}

// SetLanguage 设置当前语言
func SetLanguage(lang string) {
	if bundle == nil {
		return
	}
	var langs []string
	if lang != "" {
		langs = append(langs, normalize(lang))
	} else {
		langs = systemLanguages()
	}
	localizer = i18n.NewLocalizer(bundle, langs...)
}

// systemLanguages 获取系统语言列表
func systemLanguages() []string {
	locales, err := locale.GetLocales()
	if err != nil || len(locales) == 0 {
		return []string{language.English.String()}
	}
	langs := make([]string, 0, len(locales))
	for _, l := range locales {
		langs = append(langs, normalize(l))
	}
	return langs
}

// normalize 把 zh_CN.UTF-8 之类的写法转成 BCP 47 标签
func normalize(lang string) string {
	lang = strings.SplitN(lang, ".", 2)[0]
	lang = strings.ReplaceAll(lang, "_", "-")
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English.String()
	}
	return tag.String()
}

// T 翻译指定的消息ID，找不到时返回消息ID本身
func T(messageID string) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}
