package handlers

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"plantscan/internal/middleware"
)

const (
	msgMissingCredentials    = "missing credentials"
	msgSignInRequired        = "sign in to use this feature"
	msgInvalidPayload        = "invalid payload"
	msgInvalidRequest        = "invalid request"
	msgImageRequired         = "an image is required"
	msgImageTooLarge         = "image exceeds %d bytes"
	msgUnsupportedImage      = "unsupported image type %s"
	msgQuotaExhausted        = "you have used all %d free scans for today"
	msgQuotaExhaustedBonus   = "you have used all %d free scans for today, watch an ad to earn one more"
	msgSubscriptionExhausted = "daily scan limit of %d reached, scans reset at midnight"
	msgProviderSaturated     = "the identification service is busy, try again shortly"
	msgIdentificationTimeout = "the identification took too long, no scan was used"
	msgIdentificationFailed  = "the identification failed, no scan was used"
	msgStorageUnavailable    = "your scan allowance could not be checked, try again shortly"
	msgMisconfigured         = "the service is misconfigured"
	msgGardenFull            = "your garden is full, upgrade to add more plants"
	msgNotFound              = "not found"
	msgAlreadyCancelled      = "the subscription is already cancelled"
	msgSpeciesRequired       = "species_name is required"
	msgSubscriptionRequired  = "subscription_id is required"
	msgInvalidSignature      = "invalid signature"
	msgInternal              = "internal error"
	msgBonusCapReached       = "no more rewarded ads today"
)

func init() {
	fr := language.French
	for key, text := range map[string]string{
		msgMissingCredentials:    "identifiants manquants",
		msgSignInRequired:        "connectez-vous pour utiliser cette fonctionnalité",
		msgInvalidPayload:        "requête invalide",
		msgInvalidRequest:        "requête invalide",
		msgImageRequired:         "une image est requise",
		msgImageTooLarge:         "l'image dépasse %d octets",
		msgUnsupportedImage:      "type d'image non pris en charge : %s",
		msgQuotaExhausted:        "vous avez utilisé vos %d analyses gratuites du jour",
		msgQuotaExhaustedBonus:   "vous avez utilisé vos %d analyses gratuites du jour, regardez une publicité pour en gagner une",
		msgSubscriptionExhausted: "limite quotidienne de %d analyses atteinte, remise à zéro à minuit",
		msgProviderSaturated:     "le service d'identification est saturé, réessayez dans un instant",
		msgIdentificationTimeout: "l'identification a pris trop de temps, aucune analyse n'a été décomptée",
		msgIdentificationFailed:  "l'identification a échoué, aucune analyse n'a été décomptée",
		msgStorageUnavailable:    "votre quota n'a pas pu être vérifié, réessayez dans un instant",
		msgMisconfigured:         "le service est mal configuré",
		msgGardenFull:            "votre jardin est plein, passez à une offre supérieure pour ajouter des plantes",
		msgNotFound:              "introuvable",
		msgAlreadyCancelled:      "l'abonnement est déjà résilié",
		msgSpeciesRequired:       "species_name est requis",
		msgSubscriptionRequired:  "subscription_id est requis",
		msgInvalidSignature:      "signature invalide",
		msgInternal:              "erreur interne",
		msgBonusCapReached:       "plus de publicités récompensées aujourd'hui",
	} {
		_ = message.SetString(fr, key, text)
	}
}

func localize(ctx context.Context, key string, args ...any) string {
	tag := language.Make(middleware.LocaleFromContext(ctx))
	return message.NewPrinter(tag).Sprintf(key, args...)
}
