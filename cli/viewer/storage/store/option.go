// Package store содержит общие функции коннекторов хранилищ.
package store

import (
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// OptionValue возвращает параметр из настроек хранилища или значение по умолчанию
func OptionValue(optionName string, optionDefaultValue string, settings map[string]string) string {
	optionValue := settings[optionName]
	if optionValue == "" {
		log.Debugf("Ключ '%s' не найден в конфигурации хранилища, используется значение по умолчанию '%s'", optionName, optionDefaultValue)
		optionValue = optionDefaultValue
	}

	return optionValue
}

// IntOption то же, что OptionValue, но целым числом
func IntOption(optionName string, optionDefaultValue int, settings map[string]string) (int, error) {
	return strconv.Atoi(OptionValue(optionName, strconv.Itoa(optionDefaultValue), settings))
}

var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Token делает ключ пригодным для одного токена темы NATS
func Token(key string) string {
	return subjectReplacer.Replace(key)
}
