package codebase

import (
	"path"
	"strings"

	"github.com/ppiankov/flowspectre/internal/models"
)

// FrameworkUnknown is reported when no rule matches.
const FrameworkUnknown = "unknown"

// frameworkRule maps a manifest file and a dependency marker to a framework.
type frameworkRule struct {
	name     string
	manifest string   // base name of the manifest file
	markers  []string // substrings looked for in the manifest
	imports  []string // substrings looked for in source files
}

// Order matters: more specific frameworks come before the generic ones they build on.
var frameworkRules = []frameworkRule{
	{name: "nestjs", manifest: "package.json", markers: []string{`"@nestjs/core"`}, imports: []string{"@nestjs/common"}},
	{name: "nextjs", manifest: "package.json", markers: []string{`"next"`}, imports: []string{"next/server"}},
	{name: "fastify", manifest: "package.json", markers: []string{`"fastify"`}, imports: []string{"fastify"}},
	{name: "koa", manifest: "package.json", markers: []string{`"koa"`}, imports: []string{"require('koa')", `from "koa"`, "from 'koa'"}},
	{name: "express", manifest: "package.json", markers: []string{`"express"`}, imports: []string{"require('express')", `from "express"`, "from 'express'"}},
	{name: "fastapi", manifest: "requirements.txt", markers: []string{"fastapi"}, imports: []string{"from fastapi"}},
	{name: "django", manifest: "requirements.txt", markers: []string{"django"}, imports: []string{"from django"}},
	{name: "flask", manifest: "requirements.txt", markers: []string{"flask"}, imports: []string{"from flask"}},
	{name: "fastapi", manifest: "pyproject.toml", markers: []string{"fastapi"}, imports: []string{"from fastapi"}},
	{name: "django", manifest: "pyproject.toml", markers: []string{"django"}, imports: []string{"from django"}},
	{name: "flask", manifest: "pyproject.toml", markers: []string{"flask"}, imports: []string{"from flask"}},
	{name: "gin", manifest: "go.mod", markers: []string{"github.com/gin-gonic/gin"}, imports: []string{`"github.com/gin-gonic/gin"`}},
	{name: "echo", manifest: "go.mod", markers: []string{"github.com/labstack/echo"}, imports: []string{`"github.com/labstack/echo`}},
	{name: "fiber", manifest: "go.mod", markers: []string{"github.com/gofiber/fiber"}, imports: []string{`"github.com/gofiber/fiber`}},
	{name: "chi", manifest: "go.mod", markers: []string{"github.com/go-chi/chi"}, imports: []string{`"github.com/go-chi/chi`}},
	{name: "spring-boot", manifest: "pom.xml", markers: []string{"spring-boot"}, imports: []string{"org.springframework"}},
	{name: "spring-boot", manifest: "build.gradle", markers: []string{"org.springframework.boot"}, imports: []string{"org.springframework"}},
	{name: "rails", manifest: "Gemfile", markers: []string{"rails"}, imports: []string{"ActionController"}},
	{name: "laravel", manifest: "composer.json", markers: []string{"laravel/framework"}, imports: []string{"Illuminate\\"}},
	{name: "aspnet", manifest: ".csproj", markers: []string{"Microsoft.AspNetCore"}, imports: []string{"Microsoft.AspNetCore"}},
}

// DetectFramework classifies the web framework of a codebase.
// A manifest dependency match scores 0.6, source imports add up to 0.4.
func DetectFramework(set *Set) models.FrameworkInfo {
	best := models.FrameworkInfo{Name: FrameworkUnknown}
	if set == nil || set.Len() == 0 {
		return best
	}

	for _, rule := range frameworkRules {
		score := 0.0
		if manifestHas(set, rule) {
			score += 0.6
		}
		hits := importHits(set, rule.imports)
		switch {
		case hits >= 3:
			score += 0.4
		case hits > 0:
			score += 0.2
		}
		if score > best.Confidence {
			best = models.FrameworkInfo{Name: rule.name, Confidence: score}
		}
	}
	return best
}

func manifestHas(set *Set, rule frameworkRule) bool {
	for _, f := range set.files {
		base := path.Base(f.Path)
		if base != rule.manifest && !(strings.HasPrefix(rule.manifest, ".") && strings.HasSuffix(base, rule.manifest)) {
			continue
		}
		content := strings.ToLower(f.Content)
		for _, m := range rule.markers {
			if strings.Contains(content, strings.ToLower(m)) {
				return true
			}
		}
	}
	return false
}

func importHits(set *Set, imports []string) int {
	hits := 0
	for _, f := range set.files {
		for _, imp := range imports {
			if strings.Contains(f.Content, imp) {
				hits++
				break
			}
		}
	}
	return hits
}
